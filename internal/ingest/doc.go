// Package ingest pulls the conference program and the recording spreadsheets
// into local state.
//
// Sessions builds one SessionRecord per confirmed submission from the
// talk-management API, Descriptions fills in the generated promotional texts
// and Manifest turns the recording spreadsheets into the download manifest.
// Raw vendor responses are cached below the work directory so reruns do not
// hit the APIs unless a reload is requested.
package ingest
