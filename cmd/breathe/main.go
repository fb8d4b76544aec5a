package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cbegin/breathwave-go"
	"github.com/cbegin/breathwave-go/internal/audio"
	"github.com/cbegin/breathwave-go/internal/ccout"
	"github.com/cbegin/breathwave-go/internal/config"
	"github.com/cbegin/breathwave-go/internal/dataset"
	"github.com/cbegin/breathwave-go/internal/oscillator"
	"github.com/cbegin/breathwave-go/internal/track"
)

func main() {
	var (
		configPath   = flag.String("config", os.Getenv("BREATHWAVE_CONFIG"), "optional YAML config file")
		sessionPath  = flag.String("session", "", "session JSON file (default: built-in demo session)")
		datasetDir   = flag.String("datasets", "", "directory of dataset YAML files")
		fps          = flag.Int("fps", 0, "control frames per second")
		duration     = flag.Float64("duration", 0, "seconds to run (0 = until interrupted)")
		preview      = flag.Bool("preview", false, "play an audio preview of the first audio track")
		sampleRate   = flag.Int("sample-rate", 0, "preview and export sample rate")
		previewTrack = flag.String("preview-track", "", "audio track id to preview")
		breathDepth  = flag.Float64("breath-depth", 0, "sample-rate breathing applied to the preview gain (0..1)")
		wavPath      = flag.String("wav", "", "render one parameter curve to a WAV file")
		wavTrack     = flag.String("wav-track", "", "track id for -wav (default: first track)")
		wavParam     = flag.String("wav-param", "", "parameter name for -wav")
		ccPath       = flag.String("cc-out", "", "record mapped parameters as MIDI CC to this .mid file")
	)
	flag.Parse()

	cfg := config.Load()
	if *configPath != "" {
		var err error
		if cfg, err = cfg.LoadFile(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "session":
			cfg.SessionPath = *sessionPath
		case "datasets":
			cfg.DatasetDir = *datasetDir
		case "fps":
			cfg.FPS = *fps
		case "duration":
			cfg.Duration = time.Duration(*duration * float64(time.Second))
		case "preview":
			cfg.Preview = *preview
		case "sample-rate":
			cfg.SampleRate = *sampleRate
		case "preview-track":
			cfg.PreviewTrack = *previewTrack
		case "breath-depth":
			cfg.BreathDepth = *breathDepth
		case "wav":
			cfg.WAVPath = *wavPath
		case "wav-track":
			cfg.WAVTrack = *wavTrack
		case "wav-param":
			cfg.WAVParameter = *wavParam
		case "cc-out":
			cfg.CCPath = *ccPath
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config) error {
	provider := dataset.NewProvider()
	if cfg.DatasetDir != "" {
		ids, errs := provider.LoadDir(cfg.DatasetDir)
		for _, err := range errs {
			log.Printf("dataset: %v", err)
		}
		log.Printf("loaded %d datasets from %s", len(ids), cfg.DatasetDir)
	}

	k := breathwave.New(breathwave.WithLogger(log.Default()), breathwave.WithRowSource(provider))
	if cfg.SessionPath != "" {
		data, err := os.ReadFile(cfg.SessionPath)
		if err != nil {
			return err
		}
		rep, err := k.LoadSession(data)
		if err != nil {
			return err
		}
		log.Printf("session: %d tracks, %d oscillators, %d control tracks (%d skipped, %d warnings)",
			k.Tracks().Len(), k.Oscillators().Len(), k.Sequencers().Len(),
			len(rep.Tracks.Skipped), len(rep.Tracks.Warnings))
	} else if err := loadDemo(k); err != nil {
		return err
	}

	if cfg.WAVPath != "" {
		if err := exportWAV(k, cfg); err != nil {
			return err
		}
		if !cfg.Preview && cfg.CCPath == "" {
			return nil
		}
	}
	return play(k, cfg)
}

func exportWAV(k *breathwave.Kernel, cfg config.Config) error {
	trackID := cfg.WAVTrack
	if trackID == "" {
		all := k.Tracks().All()
		if len(all) == 0 {
			return errors.New("no tracks to export")
		}
		trackID = all[0].ID()
	}
	curve, err := k.ExportTrackParameter(trackID, cfg.WAVParameter, cfg.SampleRate, cfg.Duration.Seconds())
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.WAVPath, breathwave.EncodeWAVFloat32LE(curve, cfg.SampleRate, 1), 0o644); err != nil {
		return err
	}
	log.Printf("wrote %s (%s/%s, %.1fs)", cfg.WAVPath, trackID, cfg.WAVParameter, cfg.Duration.Seconds())
	return nil
}

type status struct {
	t      float64
	frames []track.Frame
}

func play(k *breathwave.Kernel, cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cfg.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	start := k.Now()
	k.StartSession(start)

	var tone *audio.Tone
	var toneTrack *track.Track
	var breath *breathSync
	if cfg.Preview {
		toneTrack = pickAudioTrack(k, cfg.PreviewTrack)
		if toneTrack == nil {
			return errors.New("no audio track to preview")
		}
		breath = &breathSync{k: k, proc: oscillator.NewProcessor(cfg.SampleRate)}
		breath.sync()
		tone = audio.NewTone(cfg.SampleRate, breath.proc)
		pl, err := audio.NewPlayer(cfg.SampleRate, tone)
		if err != nil {
			return err
		}
		defer pl.Stop()
		pl.Play()
	}

	var enc *ccout.Encoder
	var rec *ccout.Recorder
	if cfg.CCPath != "" {
		var err error
		if enc, err = ccout.NewEncoder(cfg.CCMappings); err != nil {
			return err
		}
		rec = ccout.NewRecorder("breathwave")
	}

	statusCh := make(chan status, 1)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(statusCh)
		return k.Run(ctx, cfg.FPS, func(t float64, frames []track.Frame) error {
			if tone != nil {
				breath.sync()
				tone.Post(toneParams(toneTrack, frames, cfg.BreathDepth))
			}
			if enc != nil {
				rec.Record(t-start, enc.Encode(frames))
			}
			select {
			case statusCh <- status{t: t - start, frames: frames}:
			default:
				// reporter busy; drop this frame
			}
			return nil
		})
	})
	g.Go(func() error {
		return report(ctx, statusCh)
	})
	err := g.Wait()
	k.EndSession(k.Now())
	if tone != nil {
		if fade := breath.sync(); fade > 0 && err == nil {
			log.Printf("fading out over %.1fs", fade)
			time.Sleep(time.Duration(fade * float64(time.Second)))
		}
		tone.Stop()
	}
	if err != nil {
		return err
	}

	if rec != nil {
		f, err := os.Create(cfg.CCPath)
		if err != nil {
			return err
		}
		if _, err := rec.WriteTo(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("wrote %s", cfg.CCPath)
	}
	return nil
}

// breathSync forwards the reference oscillator's state to the preview
// processor whenever it changes.
type breathSync struct {
	k    *breathwave.Kernel
	proc *oscillator.Processor
	last oscillator.Message
	sent bool
}

// sync posts the current state if it differs from the last post and
// returns the fade-out length when the session is ending.
func (b *breathSync) sync() float64 {
	o, ok := b.k.Oscillators().Get(b.k.Oscillators().ReferenceID())
	if !ok {
		return 0
	}
	m := oscillator.Message{Config: o.Config(), Paused: o.Paused(), Ending: o.Ending()}
	if !b.sent || !reflect.DeepEqual(m, b.last) {
		b.proc.Post(m)
		b.last, b.sent = m, true
	}
	if m.Ending && !m.Paused {
		return m.Config.FadeOutSeconds
	}
	return 0
}

func report(ctx context.Context, statusCh <-chan status) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var last status
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-statusCh:
			if !ok {
				return nil
			}
			last = s
		case <-ticker.C:
			for _, f := range last.frames {
				if !f.Enabled {
					continue
				}
				log.Printf("t=%.1fs %s %s %v", last.t, f.Kind, f.TrackID, f.Values)
			}
		}
	}
}

func pickAudioTrack(k *breathwave.Kernel, id string) *track.Track {
	if id != "" {
		t, ok := k.Tracks().Get(id)
		if !ok || t.Kind() != track.KindAudio {
			return nil
		}
		return t
	}
	if audioTracks := k.Tracks().ByKind(track.KindAudio); len(audioTracks) > 0 {
		return audioTracks[0]
	}
	return nil
}

func toneParams(t *track.Track, frames []track.Frame, breathDepth float64) audio.ToneParams {
	for _, f := range frames {
		if f.TrackID != t.ID() {
			continue
		}
		if !f.Enabled {
			return audio.ToneParams{}
		}
		p := audio.ToneParams{
			Frequency:   f.Values["frequency"],
			Gain:        f.Values["gain"],
			Pan:         f.Values["pan"],
			Waveform:    oscillator.WaveSine,
			BreathDepth: breathDepth,
		}
		if wf, ok := t.Parameter("waveform"); ok {
			p.Waveform = oscillator.Waveform(wf.Base().Choice())
		}
		return p
	}
	return audio.ToneParams{}
}
