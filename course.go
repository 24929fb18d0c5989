package lms_archiver

// A Course is one LMS course that may have recorded sessions attached.
type Course struct {
	ID string
	// Name is the sanitized course name, already safe as a path segment.
	Name string
}

// Key is the stable identifier for the course, used both as the ledger's
// top-level key and as the course's folder name.
func (c Course) Key() string {
	return c.ID + "_" + c.Name
}

func (c Course) String() string {
	return c.Key()
}
