package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/advisor/internal/agent"
	"github.com/soyeahso/advisor/internal/background"
	"github.com/soyeahso/advisor/internal/catalog"
	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/conversation"
	"github.com/soyeahso/advisor/internal/customer"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/hooks"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/soyeahso/advisor/internal/store"
)

// stack is everything a conversation needs, wired from config.
type stack struct {
	cfg       config.Config
	hooks     *hooks.Manager
	summaries store.SummaryStore
	conv      *conversation.Orchestrator
}

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = paths.Database
	}
	return cfg, nil
}

func validate(cfg *config.Config) error {
	issues := config.Validate(cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}

func openStack(ctx context.Context, cfg config.Config, log *logging.Logger) (*stack, error) {
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	if cfg.Store.Driver == "sqlite" {
		if err := paths.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("creating data directories: %w", err)
		}
	}

	summaries, err := store.OpenSummaries(cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("opening summary store: %w", err)
	}

	cat := catalog.Default()
	responder, err := agent.New(&cfg, cat, log)
	if err != nil {
		summaries.Close()
		return nil, err
	}

	personas := customer.DefaultPersonas()
	profiles := customer.NewFixtureProfileStore(personas, summaries, log)
	selector := customer.NewSelector(customer.SelectorConfig{
		Personas:  personas,
		Resolver:  customer.NewMockResolver(personas),
		Profiles:  profiles,
		Summaries: summaries,
		Live:      cfg.Agent.IsLive(),
		Space:     domain.Space(cfg.Conversation.DefaultSpace),
	}, log)

	backgrounds := background.New(cfg.Background, log)
	go func() {
		if err := backgrounds.Prewarm(ctx, background.Settings()...); err != nil {
			log.Debug().Err(err).Msg("background prewarm incomplete")
		}
	}()

	hookMgr := hooks.NewManager(log)
	conv := conversation.New(conversation.Config{
		Responder:    responder,
		Selector:     selector,
		Backgrounds:  backgrounds,
		Profiles:     profiles,
		Hooks:        hookMgr,
		WelcomeDelay: time.Duration(cfg.Conversation.WelcomeDelayMs) * time.Millisecond,
	}, log)

	log.Info().
		Str("responder", conv.Responder()).
		Str("store", cfg.Store.Driver).
		Str("space", cfg.Conversation.DefaultSpace).
		Msg("conversation stack ready")

	return &stack{cfg: cfg, hooks: hookMgr, summaries: summaries, conv: conv}, nil
}

// Close waits for pending summary writes before closing the store.
func (s *stack) Close() {
	s.conv.Close()
	s.hooks.Wait()
	if err := s.summaries.Close(); err != nil {
		log.Warn().Err(err).Msg("closing summary store")
	}
}
