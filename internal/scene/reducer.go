// Package scene holds the storefront stage state and the rules that move
// it in response to agent directives.
package scene

import (
	"regexp"
	"slices"
	"strings"

	"github.com/soyeahso/advisor/internal/background"
	"github.com/soyeahso/advisor/internal/domain"
)

// ActionType names a state transition.
type ActionType string

const (
	TransitionLayout ActionType = "TRANSITION_LAYOUT"
	SetBackground    ActionType = "SET_BACKGROUND"
	SetSetting       ActionType = "SET_SETTING"
	SetProducts      ActionType = "SET_PRODUCTS"
	OpenCheckout     ActionType = "OPEN_CHECKOUT"
	CloseCheckout    ActionType = "CLOSE_CHECKOUT"
	ShowWelcome      ActionType = "SHOW_WELCOME"
	DismissWelcome   ActionType = "DISMISS_WELCOME"
	Reset            ActionType = "RESET"
	Restore          ActionType = "RESTORE"
)

// Action is one reducer input. Only the fields relevant to Type are read.
type Action struct {
	Type       ActionType
	Layout     domain.SceneLayout
	Products   []domain.Product
	Background domain.Background
	Setting    string
	Welcome    domain.WelcomeData
	Snapshot   domain.SceneState
	// TransitionKey labels a layout transition; callers derive it from the
	// layout and a clock so Reduce stays deterministic.
	TransitionKey string
}

// Initial returns the state of a fresh stage.
func Initial() domain.SceneState {
	return domain.SceneState{
		Layout:        domain.LayoutConversationCentered,
		Setting:       domain.SettingNeutral,
		Background:    domain.Background{Type: domain.BackgroundGradient, Value: background.FallbackGradient},
		ChatPosition:  domain.ChatCenter,
		Products:      []domain.Product{},
		TransitionKey: "initial",
	}
}

// Reduce applies a to s and returns the new state. It never mutates s.
func Reduce(s domain.SceneState, a Action) domain.SceneState {
	s = Clone(s)
	switch a.Type {
	case TransitionLayout:
		s.Layout = a.Layout
		switch a.Layout {
		case domain.LayoutConversationCentered:
			s.ChatPosition = domain.ChatCenter
		case domain.LayoutCheckout:
			s.ChatPosition = domain.ChatMinimized
		default:
			s.ChatPosition = domain.ChatBottom
		}
		if a.Products != nil {
			s.Products = slices.Clone(a.Products)
		}
		s.TransitionKey = a.TransitionKey
	case SetBackground:
		s.Background = a.Background
	case SetSetting:
		s.Setting = a.Setting
	case SetProducts:
		s.Products = slices.Clone(a.Products)
	case OpenCheckout:
		s.CheckoutActive = true
		s.ChatPosition = domain.ChatMinimized
	case CloseCheckout:
		s.CheckoutActive = false
		s.ChatPosition = domain.ChatBottom
	case ShowWelcome:
		w := a.Welcome
		s.WelcomeActive = true
		s.WelcomeData = &w
		s.Layout = domain.LayoutConversationCentered
		s.ChatPosition = domain.ChatCenter
	case DismissWelcome:
		s.WelcomeActive = false
		s.WelcomeData = nil
	case Reset:
		return Initial()
	case Restore:
		return Clone(a.Snapshot)
	}
	return s
}

// Clone deep-copies a scene state.
func Clone(s domain.SceneState) domain.SceneState {
	s.Products = slices.Clone(s.Products)
	if s.WelcomeData != nil {
		w := *s.WelcomeData
		s.WelcomeData = &w
	}
	return s
}

type settingRule struct {
	setting string
	pattern *regexp.Regexp
}

// settingRules are checked in order; the first match wins.
var settingRules = []settingRule{
	{domain.SettingKitchen, regexp.MustCompile(`(?i)kitchen|faucet|cabinet|countertop|range|sink`)},
	{domain.SettingBathroom, regexp.MustCompile(`(?i)bathroom|vanity|toilet|shower|bath`)},
	{domain.SettingOutdoor, regexp.MustCompile(`(?i)deck|patio|outdoor|fence|grill|garden|lawn`)},
	{domain.SettingGarage, regexp.MustCompile(`(?i)garage|tool|drill|saw|workbench|compressor`)},
	{domain.SettingLivingRoom, regexp.MustCompile(`(?i)living|light|lamp|smart.home|thermostat`)},
	{domain.SettingJobsite, regexp.MustCompile(`(?i)lumber|drywall|concrete|sheathing|framing|stud`)},
	{domain.SettingWarehouse, regexp.MustCompile(`(?i)insulation|roofing|shingle|hvac|duct`)},
	{domain.SettingLivingRoom, regexp.MustCompile(`(?i)paint|floor|vinyl|carpet|tile`)},
	{domain.SettingWorkshop, regexp.MustCompile(`(?i)wire|romex|electrical|outlet|panel`)},
	{domain.SettingWorkshop, regexp.MustCompile(`(?i)plumb|pipe|fitting|valve`)},
}

// InferSetting guesses a scene setting from product categories and names.
func InferSetting(products []domain.Product) string {
	parts := make([]string, 0, 2*len(products))
	for _, p := range products {
		parts = append(parts, strings.ToLower(p.Category))
	}
	for _, p := range products {
		parts = append(parts, strings.ToLower(p.Name))
	}
	all := strings.Join(parts, " ")

	for _, r := range settingRules {
		if r.pattern.MatchString(all) {
			return r.setting
		}
	}
	return domain.SettingNeutral
}
