package optimizer

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/domino14/bracketsim/bracket"
)

// Sink receives the progress of an enumeration so that an interrupted run
// still leaves something useful behind.
type Sink interface {
	Best(ctx context.Context, c Candidate) error
	Progress(ctx context.Context, position uint64) error
}

type LogSink struct{}

func (LogSink) Best(ctx context.Context, c Candidate) error {
	zerolog.Ctx(ctx).Info().Uint64("position", c.Position).Float64("prob", c.Prob).
		Msg("new-best")
	return nil
}

func (LogSink) Progress(ctx context.Context, position uint64) error {
	zerolog.Ctx(ctx).Debug().Uint64("position", position).Msg("enumeration-progress")
	return nil
}

// LogBest is one document in the YAML stream.
type LogBest struct {
	Position uint64   `yaml:"position"`
	Prob     float64  `yaml:"prob"`
	Choices  uint64   `yaml:"choices"`
	Picks    []string `yaml:"picks,flow"`
}

// YAMLSink writes every new best as its own YAML document.
type YAMLSink struct {
	enc     *yaml.Encoder
	bracket *bracket.Bracket
}

func NewYAMLSink(w io.Writer, b *bracket.Bracket) *YAMLSink {
	return &YAMLSink{enc: yaml.NewEncoder(w), bracket: b}
}

func (s *YAMLSink) Best(ctx context.Context, c Candidate) error {
	picks := make([]string, len(c.Picks))
	for i, t := range c.Picks {
		picks[i] = s.bracket.TeamName(t)
	}
	return s.enc.Encode(LogBest{
		Position: c.Position,
		Prob:     c.Prob,
		Choices:  uint64(c.Choices),
		Picks:    picks,
	})
}

func (s *YAMLSink) Progress(ctx context.Context, position uint64) error {
	return nil
}

func (s *YAMLSink) Close() error {
	return s.enc.Close()
}

type MultiSink []Sink

func (m MultiSink) Best(ctx context.Context, c Candidate) error {
	for _, s := range m {
		if err := s.Best(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Progress(ctx context.Context, position uint64) error {
	for _, s := range m {
		if err := s.Progress(ctx, position); err != nil {
			return err
		}
	}
	return nil
}
