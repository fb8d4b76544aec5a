package main

import (
	"github.com/cbegin/breathwave-go"
	"github.com/cbegin/breathwave-go/internal/dataset"
	"github.com/cbegin/breathwave-go/internal/modulation"
	"github.com/cbegin/breathwave-go/internal/oscillator"
	"github.com/cbegin/breathwave-go/internal/sequencer"
	"github.com/cbegin/breathwave-go/internal/track"
)

// loadDemo builds the session used when no session file is given: a breath
// slowing from 5 to 8 seconds over two minutes drives an audio drone's gain
// and a visual glow, and plain hunt on six bells nudges the drone's pitch.
func loadDemo(k *breathwave.Kernel) error {
	cfg := oscillator.DefaultConfig()
	cfg.Label = "Slowing breath"
	cfg.StartPeriodSeconds = 5
	cfg.EndPeriodSeconds = 8
	cfg.TransitionSeconds = 120
	cfg.FadeOutSeconds = 4
	osc, err := k.Oscillators().Add(cfg, k.Now())
	if err != nil {
		return err
	}
	hunt, err := k.Sequencers().AddControl(dataset.BuiltinID, "plain-hunt-6", sequencer.DefaultTempo, "Plain hunt")
	if err != nil {
		return err
	}

	drone, err := track.New("", track.KindAudio, "Drone")
	if err != nil {
		return err
	}
	if err := drone.Set("frequency", modulation.Number(196)); err != nil {
		return err
	}
	if _, err := drone.Modulate("gain", modulation.KindOscillator, osc, 0.3); err != nil {
		return err
	}
	if _, err := drone.Modulate("frequency", modulation.KindSequencer, hunt, 24); err != nil {
		return err
	}

	glow, err := track.New("", track.KindVisual, "Glow")
	if err != nil {
		return err
	}
	if _, err := glow.Modulate("brightness", modulation.KindOscillator, osc, 0.4); err != nil {
		return err
	}

	if err := k.Tracks().Add(drone); err != nil {
		return err
	}
	return k.Tracks().Add(glow)
}
