package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/411A/lms-archiver/generic"
)

// courseStateJSON is the on-disk shape of one course entry.
type courseStateJSON struct {
	Rars           []string `json:"rars"`
	Mp4s           []string `json:"mp4s"`
	DownloadFolder string   `json:"download_folder"`
	ExtractFolder  string   `json:"extract_folder"`
}

// decode parses the raw ledger file. Each entry is either the structured
// shape or the legacy shape (a bare list of media filenames); legacy entries
// are migrated in place. migrated reports whether any migration happened.
func decode(data []byte) (courses map[string]*CourseState, migrated bool, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	courses = make(map[string]*CourseState, len(raw))
	for key, entry := range raw {
		var stj courseStateJSON
		if err := json.Unmarshal(entry, &stj); err == nil {
			courses[key] = stateFromJSON(stj)
			continue
		}
		var legacy []string
		if err := json.Unmarshal(entry, &legacy); err != nil {
			return nil, false, fmt.Errorf("%w: entry %q has unrecognized shape", ErrCorruptState, key)
		}
		courses[key] = migrateLegacy(legacy)
		migrated = true
	}
	return courses, migrated, nil
}

// migrateLegacy upgrades a legacy entry to the structured shape. The legacy
// format only listed extracted media; downloads were not tracked and the
// folders get filled in the next time the course is processed.
func migrateLegacy(mp4s []string) *CourseState {
	st := newCourseState("", "")
	for _, name := range mp4s {
		st.mp4s.Add(name)
	}
	return st
}

func stateFromJSON(stj courseStateJSON) *CourseState {
	st := newCourseState(stj.DownloadFolder, stj.ExtractFolder)
	for _, name := range stj.Rars {
		st.rars.Add(name)
	}
	for _, name := range stj.Mp4s {
		st.mp4s.Add(name)
	}
	return st
}

func encode(courses map[string]*CourseState) map[string]courseStateJSON {
	out := make(map[string]courseStateJSON, len(courses))
	for key, st := range courses {
		out[key] = courseStateJSON{
			Rars:           setToSorted(st.rars),
			Mp4s:           setToSorted(st.mp4s),
			DownloadFolder: st.downloadFolder,
			ExtractFolder:  st.extractFolder,
		}
	}
	return out
}

func setToSorted(s generic.Set[string]) []string {
	return sorted(s.ToSlice())
}
