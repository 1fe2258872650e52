package crash

// Frame is one stack entry as reported by an SDK or rewritten by
// symbolication. Line and Col are 1-based; zero means unknown.
type Frame struct {
	Function    string   `json:"function,omitempty"`
	File        string   `json:"file,omitempty"`
	Line        int      `json:"line,omitempty"`
	Col         int      `json:"col,omitempty"`
	PreContext  []string `json:"pre_context,omitempty"`
	ContextLine string   `json:"context_line,omitempty"`
	PostContext []string `json:"post_context,omitempty"`
}

// Stacktrace orders frames outermost first, the way SDKs report them.
type Stacktrace struct {
	Frames []Frame `json:"frames"`
}

func (s Stacktrace) IsEmpty() bool {
	return len(s.Frames) == 0
}

// Clone deep-copies the trace so symbolication can rewrite frames while the
// raw sidecar keeps the original.
func (s Stacktrace) Clone() Stacktrace {
	if len(s.Frames) == 0 {
		return Stacktrace{}
	}

	frames := make([]Frame, len(s.Frames))
	copy(frames, s.Frames)
	for i := range frames {
		if len(s.Frames[i].PreContext) > 0 {
			frames[i].PreContext = append([]string(nil), s.Frames[i].PreContext...)
		}
		if len(s.Frames[i].PostContext) > 0 {
			frames[i].PostContext = append([]string(nil), s.Frames[i].PostContext...)
		}
	}
	return Stacktrace{Frames: frames}
}
