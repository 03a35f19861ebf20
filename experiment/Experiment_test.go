package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/samuelfneumann/goforce/agent/dpg"
	"github.com/samuelfneumann/goforce/experiment/tracker"
)

// config returns a YAML experiment configuration running DPG on the
// pendulum swing up task
func config(expType Type, maxSteps, cutoff, parallel int) []byte {
	return []byte(fmt.Sprintf(`
type: %v
max_steps: %v
environment:
  environment: Pendulum
  task: SwingUp
  episode_cutoff: %v
  discount: 0.99
agent:
  Type: dpg
  ConfigList:
    memory: [200]
    batch_size: [8, 16]
    network: [[{type: dense, size: 8, activation: tanh}]]
    critic: [[{type: dense, size: 8, activation: tanh}]]
    exploration: [0.1]
    parallel_interactions: [%v]
    summarizer: [{summaries: [reward, episode-length]}]
    recorder: [{frequency: 2}]
    saver: [{unit: episodes, frequency: 1, max_checkpoints: 2}]
`, expType, maxSteps, cutoff, parallel))
}

func TestParseYAML(t *testing.T) {
	c, err := Parse(config(OnlineExp, 100, 20, 1))
	if err != nil {
		t.Fatal(err)
	}

	if c.Type != OnlineExp || c.MaxSteps != 100 {
		t.Errorf("parse: have type %v and max steps %v", c.Type, c.MaxSteps)
	}
	if c.EnvConf.EpisodeCutoff != 20 {
		t.Errorf("parse: want(20) episode cutoff have(%v)",
			c.EnvConf.EpisodeCutoff)
	}
	if n := c.AgentConf.Len(); n != 2 {
		t.Fatalf("parse: want(2) agent configs have(%v)", n)
	}

	conf := c.AgentConf.At(1).(dpg.Config)
	if conf.BatchSize != 16 || conf.Memory != 200 {
		t.Errorf("parse: have batch size %v and memory %v", conf.BatchSize,
			conf.Memory)
	}
	if conf.Discount != dpg.DefaultDiscount {
		t.Errorf("parse: missing option did not keep its default")
	}
	if keys := conf.Saver.Keys(); len(keys) != 3 || keys[0] != "unit" {
		t.Errorf("parse: saver keys out of document order: %v", keys)
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"type": "Online", "max_steps": 10,
		"environment": {"environment": "Pendulum", "task": "SwingUp",
			"episode_cutoff": 5, "discount": 1},
		"agent": {"Type": "ddpg", "ConfigList": {"memory": [50],
			"batch_size": [4]}}
	}`)

	c, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if c.AgentConf.Len() != 1 {
		t.Errorf("parse: want(1) agent config have(%v)", c.AgentConf.Len())
	}
}

func TestParseInvalid(t *testing.T) {
	tests := map[string][]byte{
		"type":        config("Offline", 100, 20, 1),
		"max steps":   config(OnlineExp, 0, 20, 1),
		"environment": config(OnlineExp, 100, 0, 1),
		"syntax":      []byte("type: [Online"),
		"agent":       []byte("type: Online\nmax_steps: 10\n"),
	}

	for name, data := range tests {
		if _, err := Parse(data); err == nil {
			t.Errorf("%v: expected error", name)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	if err := os.WriteFile(path, config(OnlineExp, 10, 5, 1), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err != nil {
		t.Error(err)
	}
	if _, err := Load(path + ".missing"); err == nil {
		t.Error("load: expected error on missing file")
	}
}

func TestNewRunDir(t *testing.T) {
	root := t.TempDir()
	a, err := NewRunDir(root)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewRunDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("newRunDir: run directories are not unique")
	}
	if info, err := os.Stat(a); err != nil || !info.IsDir() {
		t.Errorf("newRunDir: %v is not a directory", a)
	}
}

func TestOnline(t *testing.T) {
	c, err := Parse(config(OnlineExp, 60, 20, 1))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	exp, err := c.CreateExp(0, 1, dir, hclog.NewNullLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer exp.Close()

	if err := exp.Run(); err != nil {
		t.Fatal(err)
	}
	if exp.Steps() != 60 {
		t.Errorf("run: want(60) steps have(%v)", exp.Steps())
	}
	if err := exp.Save(); err != nil {
		t.Fatal(err)
	}

	returns, err := tracker.LoadData(filepath.Join(dir, "summaries",
		"return.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(returns) != 3 {
		t.Errorf("returns: want(3) episodes have(%v)", len(returns))
	}

	lengths, err := tracker.LoadData(filepath.Join(dir, "summaries",
		"episode-length.bin"))
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range lengths {
		if l != 20 {
			t.Errorf("lengths: want(20) have(%v)", l)
		}
	}

	// Only the two most recent checkpoints are kept
	checkpoints, err := filepath.Glob(filepath.Join(dir, "checkpoints",
		"agent-*.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(checkpoints) != 2 {
		t.Errorf("checkpoints: want(2) have(%v)", checkpoints)
	}

	// Episodes 0 and 2 are recorded
	trace, err := tracker.LoadTrace(filepath.Join(dir, "traces", "trace-2.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if trace.Episode != 2 {
		t.Errorf("trace: want(2) episode have(%v)", trace.Episode)
	}
	if len(trace.States) != 21 || len(trace.Actions) != 20 {
		t.Errorf("trace: have %v states and %v actions", len(trace.States),
			len(trace.Actions))
	}

	if _, err := os.Stat(filepath.Join(dir, "agent.json")); err != nil {
		t.Errorf("agent specification was not saved: %v", err)
	}
}

func TestParallel(t *testing.T) {
	c, err := Parse(config(ParallelExp, 80, 20, 2))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	exp, err := c.CreateExp(1, 2, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer exp.Close()

	if _, ok := exp.(*Parallel); !ok {
		t.Fatalf("createExp: want(*Parallel) have(%T)", exp)
	}
	if err := exp.Run(); err != nil {
		t.Fatal(err)
	}
	if err := exp.Save(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		filename := filepath.Join(dir, "summaries",
			fmt.Sprintf("return-%v.bin", i))
		returns, err := tracker.LoadData(filename)
		if err != nil {
			t.Fatal(err)
		}
		if len(returns) != 2 {
			t.Errorf("parallel %v: want(2) episodes have(%v)", i, len(returns))
		}
	}
}
