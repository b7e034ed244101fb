package audio

// Source is a selectable input/output device.
// It is either synthesized (the built-in speaker) or derived from a hardware port.
type Source struct {
	Name             string
	Port             *Port
	IsBuiltInSpeaker bool
}

// BuiltInSpeaker returns the synthesized speakerphone source.
func BuiltInSpeaker() *Source {
	return &Source{Name: "Speaker", IsBuiltInSpeaker: true}
}

// SourceFromPort wraps a hardware port descriptor.
func SourceFromPort(p Port) *Source {
	port := p
	return &Source{Name: p.Name, Port: &port}
}

// Equal compares two sources by identity of the underlying device.
func (s *Source) Equal(other *Source) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.IsBuiltInSpeaker || other.IsBuiltInSpeaker {
		return s.IsBuiltInSpeaker == other.IsBuiltInSpeaker
	}
	if s.Port == nil || other.Port == nil {
		return s.Port == other.Port
	}
	return s.Port.UID == other.Port.UID
}

// String returns the source name, "none" for nil.
func (s *Source) String() string {
	if s == nil {
		return "none"
	}
	return s.Name
}
