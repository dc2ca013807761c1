package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"irqwatch/engine"
)

// pollConfig is the TOML form of one memory poll. A present cmp value
// selects compare matching instead of change detection.
type pollConfig struct {
	Addr  uint32  `toml:"addr"`
	Mask  uint32  `toml:"mask"`
	Width uint8   `toml:"width"`
	Cmp   *uint32 `toml:"cmp"`
}

// fileConfig is the on-disk configuration: the engine config plus the
// poll lists, which need conversion and validation.
type fileConfig struct {
	engine.Config

	IrqPolls   []pollConfig `toml:"irq_poll"`
	TracePolls []pollConfig `toml:"trace_poll"`
}

// loadConfig reads a watch configuration file. An empty path yields the
// defaults.
func loadConfig(path string) (engine.Config, error) {
	fc := fileConfig{Config: engine.DefaultConfig()}
	if path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return engine.Config{}, err
		}
		fc.Config.Normalize()
	}
	if err := fc.Config.Validate(); err != nil {
		return engine.Config{}, err
	}

	id := 0
	convert := func(polls []pollConfig) ([]engine.Poll, error) {
		var out []engine.Poll
		for _, pc := range polls {
			if len(out) >= engine.MaxPolls {
				return nil, fmt.Errorf("too many polls (max %d)", engine.MaxPolls)
			}
			var cmp uint32
			if pc.Cmp != nil {
				cmp = *pc.Cmp
			}
			p, err := engine.NewPoll(id, pc.Addr, pc.Width, pc.Mask, cmp, pc.Cmp != nil)
			if err != nil {
				return nil, fmt.Errorf("poll %08x: %w", pc.Addr, err)
			}
			id++
			out = append(out, p)
		}
		return out, nil
	}

	var err error
	if fc.Config.IrqPolls, err = convert(fc.IrqPolls); err != nil {
		return engine.Config{}, err
	}
	if fc.Config.TracePolls, err = convert(fc.TracePolls); err != nil {
		return engine.Config{}, err
	}
	return fc.Config, nil
}
