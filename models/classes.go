package models

import "fmt"

// OutputClass represents one classifier category.
type OutputClass struct {
	// The integer index in the model's output vector.
	Index int
	// The human-readable label.
	Name string
	// Reserved marks background classes that must never trigger an action.
	Reserved bool
}

// LabelSet is an immutable, index-ordered label table.
type LabelSet struct {
	// Label set identifier.
	Style ModelFamily
	// Classes in output vector order.
	classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewLabelSet builds a label set from labels in output order, flagging reserved ones.
//
// Arguments:
//   - style: The family the labels belong to.
//   - labels: Labels in the classifier's output order.
//   - reserved: Labels that represent background classes.
//
// Returns:
//   - *LabelSet: The label set.
//   - error: An error if a label is duplicated or a reserved label is unknown.
func NewLabelSet(style ModelFamily, labels []string, reserved []string) (*LabelSet, error) {
	s := &LabelSet{
		Style:     style,
		classes:   make([]OutputClass, len(labels)),
		nameToIdx: make(map[string]int, len(labels)),
	}
	for i, name := range labels {
		if _, ok := s.nameToIdx[name]; ok {
			return nil, fmt.Errorf("duplicate label %q in style %q", name, style)
		}
		s.classes[i] = OutputClass{Index: i, Name: name}
		s.nameToIdx[name] = i
	}
	for _, name := range reserved {
		idx, ok := s.nameToIdx[name]
		if !ok {
			return nil, fmt.Errorf("reserved label %q not found in style %q", name, style)
		}
		s.classes[idx].Reserved = true
	}
	return s, nil
}

// Len returns the number of classes.
func (s *LabelSet) Len() int {
	return len(s.classes)
}

// Class returns the class at idx. idx must be in range.
func (s *LabelSet) Class(idx int) OutputClass {
	return s.classes[idx]
}

// Classes returns a copy of every class in output order.
func (s *LabelSet) Classes() []OutputClass {
	return append([]OutputClass(nil), s.classes...)
}

// GetName returns the class name for a given index.
func (s *LabelSet) GetName(idx int) (string, error) {
	if idx < 0 || idx >= len(s.classes) {
		return "", fmt.Errorf("index %d out of range for style %q", idx, s.Style)
	}
	return s.classes[idx].Name, nil
}

// GetIndex returns the class index for a given name.
func (s *LabelSet) GetIndex(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found in style %q", name, s.Style)
	}
	return idx, nil
}

// IsReserved reports whether the class at idx is a background class.
func (s *LabelSet) IsReserved(idx int) bool {
	return idx >= 0 && idx < len(s.classes) && s.classes[idx].Reserved
}

// Names returns the labels in output order.
func (s *LabelSet) Names() []string {
	names := make([]string, len(s.classes))
	for i, c := range s.classes {
		names[i] = c.Name
	}
	return names
}

// SpeechCommandsLabels is the 12-class label table, in output order, of the
// int8 speech commands model.
var SpeechCommandsLabels = []string{
	"down", "go", "left", "no", "off", "on",
	"right", "stop", "up", "yes", LabelSilence, LabelUnknown,
}

// SpeechCommandsReserved are the background classes of SpeechCommandsLabels.
var SpeechCommandsReserved = []string{LabelSilence, LabelUnknown}
