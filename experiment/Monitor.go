package experiment

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/goforce/agent"
	"github.com/samuelfneumann/goforce/experiment/checkpointer"
	"github.com/samuelfneumann/goforce/experiment/tracker"
	"github.com/samuelfneumann/goforce/spec"
)

// Summary labels understood in summarizer specifications
const (
	RewardSummary        string = "reward"
	EpisodeLengthSummary string = "episode-length"
	AllSummaries         string = "all"
)

// Defaults of summarizers and recorders
const (
	DefaultSummaryDirectory string = "summaries"
	DefaultTraceDirectory   string = "traces"
)

// monitors returns the Trackers and Checkpointers described by the
// saver, summarizer and recorder specifications of an agent.Monitored
// configuration. Trackers are returned per parallel interaction.
func monitors(c agent.Config, a agent.Agent, dir string,
	parallel int) ([][]tracker.Tracker, []checkpointer.Checkpointer, error) {
	trackers := make([][]tracker.Tracker, parallel)

	m, ok := c.(agent.Monitored)
	if !ok {
		return trackers, nil, nil
	}

	for i := range trackers {
		suffix := ""
		if parallel > 1 {
			suffix = fmt.Sprintf("-%v", i)
		}

		if s := m.SummarizerSpec(); s != nil {
			summaries, err := summarizers(s, dir, suffix)
			if err != nil {
				return nil, nil, fmt.Errorf("monitors: %v", err)
			}
			trackers[i] = append(trackers[i], summaries...)
		}

		if s := m.RecorderSpec(); s != nil {
			r, err := recorder(s, dir, suffix)
			if err != nil {
				return nil, nil, fmt.Errorf("monitors: %v", err)
			}
			trackers[i] = append(trackers[i], r)
		}
	}

	var checkpointers []checkpointer.Checkpointer
	if s := m.SaverSpec(); s != nil {
		w, ok := a.(agent.Weighter)
		if !ok {
			return nil, nil, fmt.Errorf("monitors: agent %T cannot be "+
				"checkpointed", a)
		}
		saver, err := checkpointer.FromSpec(s, w, dir)
		if err != nil {
			return nil, nil, fmt.Errorf("monitors: %v", err)
		}
		checkpointers = append(checkpointers, saver)
	}

	return trackers, checkpointers, nil
}

// summarizers returns the Trackers described by a summarizer
// specification, with keys directory and summaries
func summarizers(s *spec.Dict, root, suffix string) ([]tracker.Tracker,
	error) {
	dir, err := directory(s, root, DefaultSummaryDirectory)
	if err != nil {
		return nil, fmt.Errorf("summarizers: %v", err)
	}
	labels, err := s.Strings("summaries", []string{AllSummaries})
	if err != nil {
		return nil, fmt.Errorf("summarizers: %v", err)
	}

	var reward, length bool
	for _, label := range labels {
		switch label {
		case AllSummaries:
			reward, length = true, true
		case RewardSummary:
			reward = true
		case EpisodeLengthSummary:
			length = true
		default:
			return nil, fmt.Errorf("summarizers: unknown summary %v", label)
		}
	}

	var trackers []tracker.Tracker
	if reward {
		filename := filepath.Join(dir, "return"+suffix+".bin")
		trackers = append(trackers, tracker.NewReturn(filename))
	}
	if length {
		filename := filepath.Join(dir, "episode-length"+suffix+".bin")
		trackers = append(trackers, tracker.NewEpisodeLength(filename))
	}
	return trackers, nil
}

// recorder returns the Recorder described by a recorder specification,
// with keys directory, frequency, start and max_traces
func recorder(s *spec.Dict, root, suffix string) (*tracker.Recorder, error) {
	dir, err := directory(s, root, DefaultTraceDirectory)
	if err != nil {
		return nil, fmt.Errorf("recorder: %v", err)
	}
	frequency, err := s.Int("frequency", 1)
	if err != nil {
		return nil, fmt.Errorf("recorder: %v", err)
	}
	start, err := s.Int("start", 0)
	if err != nil {
		return nil, fmt.Errorf("recorder: %v", err)
	}
	maxTraces, err := s.Int("max_traces", 0)
	if err != nil {
		return nil, fmt.Errorf("recorder: %v", err)
	}

	filename := checkpointer.FilenameEnumerator(0,
		filepath.Join(dir, "trace"+suffix), checkpointer.Extension)
	r, err := tracker.NewRecorder(frequency, start, maxTraces, filename)
	if err != nil {
		return nil, fmt.Errorf("recorder: %v", err)
	}
	return r, nil
}

// directory creates and returns the directory of a specification. A
// relative directory is taken relative to root.
func directory(s *spec.Dict, root, def string) (string, error) {
	dir, err := s.Str("directory", def)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("could not create directory: %v", err)
	}
	return dir, nil
}
