package annotation

import (
	"fmt"
	"sort"
)

// BackgroundLabel is the reserved group label for unannotated pixels.
const BackgroundLabel = "background"

// MaxGroups is the largest number of distinct group labels one batch may use.
// Mask pixels are 8-bit, and code 0 is reserved for the background.
const MaxGroups = 255

// Registry maps group labels to the integer codes used in label masks. It is
// built once per batch and read-only afterwards, so it is safe to share
// between concurrent conversions.
type Registry struct {
	codes  map[string]uint8
	labels []string
}

// BuildRegistry scans every annotation file in the batch and assigns codes
// 1..N to the distinct group labels in lexicographic order. The background
// label always maps to 0. Codes depend only on the set of labels, not on the
// order the files are given in.
func BuildRegistry(paths []string) (*Registry, error) {
	set := make(map[string]struct{})
	for _, path := range paths {
		if err := collectLabels(path, set); err != nil {
			return nil, err
		}
	}
	delete(set, BackgroundLabel)

	if len(set) > MaxGroups {
		return nil, fmt.Errorf("batch has %d distinct groups, masks support at most %d", len(set), MaxGroups)
	}

	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	codes := make(map[string]uint8, len(labels)+1)
	codes[BackgroundLabel] = 0
	for i, label := range labels {
		codes[label] = uint8(i + 1)
	}

	return &Registry{codes: codes, labels: labels}, nil
}

// Code returns the mask code for a group label. Unknown or empty labels
// resolve to the background code 0.
func (r *Registry) Code(label string) uint8 {
	return r.codes[label]
}

// Labels returns the non-background labels in code order (code 1 first).
func (r *Registry) Labels() []string {
	return r.labels
}

// Len returns the number of non-background groups.
func (r *Registry) Len() int {
	return len(r.labels)
}
