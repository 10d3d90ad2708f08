package task

import "os"

// DetectConflicts computes the ordered conflict list for an operation. It is
// a pure function of its arguments and the filesystem: identical inputs and
// filesystem state always yield the same ordered list.
//
// Create has at most one conflict, the destination archive itself. Extract,
// copy and move check every unit's target in unit order. Delete never
// conflicts.
func DetectConflicts(verb Verb, units []Unit, destination string) []Conflict {
	switch verb {
	case VerbCreate:
		info, err := os.Lstat(destination)
		if err != nil {
			return nil
		}
		c := Conflict{
			Path:    destination,
			Kind:    DestinationExists,
			IsDir:   info.IsDir(),
			Ordinal: 1,
		}
		if !info.IsDir() {
			c.Size = info.Size()
		}
		return []Conflict{c}

	case VerbExtract, VerbCopy, VerbMove:
		var conflicts []Conflict
		seen := map[string]bool{}
		for _, u := range units {
			if u.Target == "" || seen[u.Target] {
				continue
			}
			info, err := os.Lstat(u.Target)
			if err != nil {
				continue
			}
			seen[u.Target] = true
			c := Conflict{
				Path:    u.Target,
				Kind:    EntryWouldOverwrite,
				IsDir:   info.IsDir(),
				Ordinal: len(conflicts) + 1,
			}
			if !info.IsDir() {
				c.Size = info.Size()
			}
			conflicts = append(conflicts, c)
		}
		return conflicts

	default:
		return nil
	}
}
