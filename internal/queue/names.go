package queue

import "fmt"

// Name identifies a workflow queue.
type Name string

const (
	Prepared          Name = "prepared"
	ScheduledUpdate   Name = "scheduled-for-update"
	UpdatedOnPlatform Name = "updated-on-platform"
	Published         Name = "published"

	ToPost Name = "to-post"
	Posted Name = "posted"

	ToEmail Name = "to-email"
	Emailed Name = "emailed"
)

// Family groups queues an item moves through; an item sits in at most one
// queue of a family.
type Family string

const (
	FamilyRelease Family = "release"
	FamilyPost    Family = "post"
	FamilyEmail   Family = "email"
)

var families = map[Family][]Name{
	FamilyRelease: {Prepared, ScheduledUpdate, UpdatedOnPlatform, Published},
	FamilyPost:    {ToPost, Posted},
	FamilyEmail:   {ToEmail, Emailed},
}

var familyOf = func() map[Name]Family {
	out := make(map[Name]Family)
	for fam, names := range families {
		for _, name := range names {
			out[name] = fam
		}
	}
	return out
}()

// ReleaseQueues lists the release family in transition order.
func ReleaseQueues() []Name { return Queues(FamilyRelease) }

// Queues returns the queues of a family in transition order.
func Queues(f Family) []Name {
	names := families[f]
	out := make([]Name, len(names))
	copy(out, names)
	return out
}

// AllQueues lists every known queue grouped by family.
func AllQueues() []Name {
	out := make([]Name, 0, len(familyOf))
	for _, fam := range []Family{FamilyRelease, FamilyPost, FamilyEmail} {
		out = append(out, families[fam]...)
	}
	return out
}

// FamilyOf reports the family a queue belongs to.
func FamilyOf(name Name) (Family, bool) {
	fam, ok := familyOf[name]
	return fam, ok
}

// ParseName validates a queue name supplied by an operator.
func ParseName(value string) (Name, error) {
	name := Name(value)
	if _, ok := familyOf[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownQueue, value)
	}
	return name, nil
}

func (n Name) String() string { return string(n) }
