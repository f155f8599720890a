package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// LoopAction is what the orchestrator should do after a detection check.
type LoopAction int

const (
	ActionContinue LoopAction = iota
	ActionWarn
	ActionTerminate
)

// LoopType tags which detector fired.
type LoopType int

const (
	LoopNone LoopType = iota
	LoopExactDuplicate
	LoopPattern
)

// LoopDetection is the result of checking one candidate call against the
// recorded window.
type LoopDetection struct {
	Detected        bool
	LoopType        LoopType
	Confidence      float64
	Suggestion      string
	Action          LoopAction
	DetectionCount  int
	WarningMessage  string
	Pattern         []ToolCall // populated only for LoopPattern
	Repetitions     int
}

// LoopDetectorConfig holds the tunables; see DefaultLoopDetectorConfig.
type LoopDetectorConfig struct {
	MaxExactDuplicates     int
	ExactWindowSize        int
	EnablePatternDetection bool
	MinPatternLength       int
	MaxPatternLength       int
	PatternWindowSize      int
	FirstDetectionAction   LoopAction
	SecondDetectionAction  LoopAction
	ThirdDetectionAction   LoopAction
}

// DefaultLoopDetectorConfig returns the documented defaults.
func DefaultLoopDetectorConfig() LoopDetectorConfig {
	return LoopDetectorConfig{
		MaxExactDuplicates:     3,
		ExactWindowSize:        10,
		EnablePatternDetection: true,
		MinPatternLength:       2,
		MaxPatternLength:       3,
		PatternWindowSize:      20,
		FirstDetectionAction:   ActionWarn,
		SecondDetectionAction:  ActionWarn,
		ThirdDetectionAction:   ActionTerminate,
	}
}

// LoopDetector tracks recently executed tool calls and flags exact-duplicate
// or oscillating-pattern behavior before the orchestrator dispatches the
// next call.
type LoopDetector struct {
	cfg            LoopDetectorConfig
	window         []ToolCall // most-recent-last, capped at max(ExactWindowSize, PatternWindowSize)
	detectionCount int
}

// NewLoopDetector builds a detector from cfg.
func NewLoopDetector(cfg LoopDetectorConfig) *LoopDetector {
	return &LoopDetector{cfg: cfg}
}

// toolCallsEqual compares name plus structural JSON equality of arguments
// (no whitespace/ordering sensitivity).
func toolCallsEqual(a, b ToolCall) bool {
	if a.Name != b.Name {
		return false
	}
	var av, bv interface{}
	aErr := json.Unmarshal(a.Arguments, &av)
	bErr := json.Unmarshal(b.Arguments, &bv)
	if aErr != nil || bErr != nil {
		return string(a.Arguments) == string(b.Arguments)
	}
	return reflect.DeepEqual(av, bv)
}

// Check inspects candidate against the recorded window, then records it.
// Detection consults history before candidate is appended to the window, so
// a call is never counted against itself.
func (d *LoopDetector) Check(candidate ToolCall) LoopDetection {
	detection := d.checkExactDuplicate(candidate)
	if !detection.Detected && d.cfg.EnablePatternDetection {
		detection = d.checkPattern(candidate)
	}

	d.record(candidate)

	if !detection.Detected {
		return LoopDetection{Detected: false, Action: ActionContinue}
	}

	d.detectionCount++
	detection.DetectionCount = d.detectionCount
	detection.Confidence = 1.0
	detection.Action = d.actionFor(d.detectionCount)

	if detection.Action == ActionWarn {
		detection.WarningMessage = d.warningFor(detection)
	}
	return detection
}

// Reset clears the window and detection counter, e.g. after a Terminate has
// been surfaced and the orchestrator is giving up on this loop.
func (d *LoopDetector) Reset() {
	d.window = nil
	d.detectionCount = 0
}

func (d *LoopDetector) actionFor(count int) LoopAction {
	switch count {
	case 1:
		return d.cfg.FirstDetectionAction
	case 2:
		return d.cfg.SecondDetectionAction
	default:
		return d.cfg.ThirdDetectionAction
	}
}

func (d *LoopDetector) record(call ToolCall) {
	d.window = append(d.window, call)
	cap := d.cfg.ExactWindowSize
	if d.cfg.PatternWindowSize > cap {
		cap = d.cfg.PatternWindowSize
	}
	if cap <= 0 {
		return
	}
	if len(d.window) > cap {
		d.window = d.window[len(d.window)-cap:]
	}
}

func (d *LoopDetector) checkExactDuplicate(candidate ToolCall) LoopDetection {
	windowSize := d.cfg.ExactWindowSize
	recent := d.window
	if windowSize > 0 && len(recent) > windowSize {
		recent = recent[len(recent)-windowSize:]
	}

	count := 0
	for _, c := range recent {
		if toolCallsEqual(c, candidate) {
			count++
		}
	}

	if count >= d.cfg.MaxExactDuplicates {
		return LoopDetection{
			Detected:   true,
			LoopType:   LoopExactDuplicate,
			Suggestion: fmt.Sprintf("tool call %q has repeated %d times with identical arguments; try a different approach", candidate.Name, count+1),
			Repetitions: count + 1,
		}
	}
	return LoopDetection{}
}

func (d *LoopDetector) checkPattern(candidate ToolCall) LoopDetection {
	for l := d.cfg.MinPatternLength; l <= d.cfg.MaxPatternLength; l++ {
		if detection, ok := d.checkPatternLength(candidate, l); ok {
			return detection
		}
	}
	return LoopDetection{}
}

// checkPatternLength forms the last L recorded calls as a candidate pattern,
// compares with the preceding L calls, and checks that candidate equals the
// pattern's first (oldest) element.
func (d *LoopDetector) checkPatternLength(candidate ToolCall, l int) (LoopDetection, bool) {
	if len(d.window) < 2*l {
		return LoopDetection{}, false
	}
	n := len(d.window)
	pattern := d.window[n-l:]
	preceding := d.window[n-2*l : n-l]

	for i := 0; i < l; i++ {
		if !toolCallsEqual(pattern[i], preceding[i]) {
			return LoopDetection{}, false
		}
	}
	// The candidate continues the cycle only if it matches the oldest
	// element of the just-closed window, i.e. the call that would start
	// the next repetition.
	if !toolCallsEqual(candidate, pattern[0]) {
		return LoopDetection{}, false
	}

	patternCopy := make([]ToolCall, l)
	copy(patternCopy, pattern)
	return LoopDetection{
		Detected:    true,
		LoopType:    LoopPattern,
		Pattern:     patternCopy,
		Repetitions: 2,
		Suggestion:  fmt.Sprintf("tool calls are oscillating in a repeating pattern of length %d; try a different approach", l),
	}, true
}

func (d *LoopDetector) warningFor(det LoopDetection) string {
	switch det.LoopType {
	case LoopExactDuplicate:
		return fmt.Sprintf("Warning: this exact tool call has now been made %d times in a row. Please change your approach instead of repeating it.", det.Repetitions)
	case LoopPattern:
		return fmt.Sprintf("Warning: your tool calls appear to be oscillating between a repeating pattern (seen %d times). Please change your strategy.", det.Repetitions)
	default:
		return "Warning: a repetitive tool-calling pattern was detected. Please change your approach."
	}
}
