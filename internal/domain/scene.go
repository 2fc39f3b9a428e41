package domain

// SceneLayout is the arrangement of the storefront stage.
type SceneLayout string

const (
	LayoutConversationCentered SceneLayout = "conversation-centered"
	LayoutProductHero          SceneLayout = "product-hero"
	LayoutProductGrid          SceneLayout = "product-grid"
	LayoutCheckout             SceneLayout = "checkout"
)

// ChatPosition places the chat panel.
type ChatPosition string

const (
	ChatCenter    ChatPosition = "center"
	ChatBottom    ChatPosition = "bottom"
	ChatMinimized ChatPosition = "minimized"
)

// BackgroundType distinguishes how the background value is rendered.
type BackgroundType string

const (
	BackgroundGradient   BackgroundType = "gradient"
	BackgroundImage      BackgroundType = "image"
	BackgroundGenerative BackgroundType = "generative"
)

// Background is the scene backdrop. A generative background with
// IsLoading set is a placeholder awaiting a generation result.
type Background struct {
	Type      BackgroundType `json:"type"`
	Value     string         `json:"value"`
	IsLoading bool           `json:"isLoading,omitempty"`
}

// Settings the scene can show.
const (
	SettingNeutral    = "neutral"
	SettingKitchen    = "kitchen"
	SettingBathroom   = "bathroom"
	SettingOutdoor    = "outdoor"
	SettingGarage     = "garage"
	SettingLivingRoom = "living-room"
	SettingJobsite    = "jobsite"
	SettingWarehouse  = "warehouse"
	SettingWorkshop   = "workshop"
)

// WelcomeData is the greeting overlay text.
type WelcomeData struct {
	Message string `json:"message"`
	Subtext string `json:"subtext,omitempty"`
}

// SceneState is the full UI stage state.
type SceneState struct {
	Layout         SceneLayout  `json:"layout"`
	Setting        string       `json:"setting"`
	Background     Background   `json:"background"`
	ChatPosition   ChatPosition `json:"chatPosition"`
	Products       []Product    `json:"products"`
	CheckoutActive bool         `json:"checkoutActive"`
	WelcomeActive  bool         `json:"welcomeActive"`
	WelcomeData    *WelcomeData `json:"welcomeData,omitempty"`
	TransitionKey  string       `json:"transitionKey"`
}
