package pipeline

type Status string

const (
	StatusSkipped    Status = "skipped"
	StatusDownloaded Status = "downloaded"
	StatusExtracted  Status = "extracted"
	StatusFailed     Status = "failed"
)

// An Outcome is the result of one pipeline stage for one recording. Err is
// set only for StatusFailed and never carries a fatal condition; those are
// returned separately so the caller can stop the run.
type Outcome struct {
	Status Status
	Err    error
}

func skipped() Outcome {
	return Outcome{Status: StatusSkipped}
}

func downloaded() Outcome {
	return Outcome{Status: StatusDownloaded}
}

func extracted() Outcome {
	return Outcome{Status: StatusExtracted}
}

func failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}
