package domain

// UIAction names a command the agent embeds in its reply.
type UIAction string

const (
	ActionShowProduct      UIAction = "SHOW_PRODUCT"
	ActionShowProducts     UIAction = "SHOW_PRODUCTS"
	ActionChangeScene      UIAction = "CHANGE_SCENE"
	ActionWelcomeScene     UIAction = "WELCOME_SCENE"
	ActionInitiateCheckout UIAction = "INITIATE_CHECKOUT"
	ActionConfirmOrder     UIAction = "CONFIRM_ORDER"
	ActionResetScene       UIAction = "RESET_SCENE"
	ActionIdentifyCustomer UIAction = "IDENTIFY_CUSTOMER"
	ActionRequestQuote     UIAction = "REQUEST_QUOTE"
)

// UIDirective is a scene command attached to an agent response.
type UIDirective struct {
	Action  UIAction            `json:"action"`
	Payload *UIDirectivePayload `json:"payload,omitempty"`
}

// Products returns the payload products, if any.
func (d *UIDirective) Products() []Product {
	if d == nil || d.Payload == nil {
		return nil
	}
	return d.Payload.Products
}

// UIDirectivePayload carries the directive arguments.
type UIDirectivePayload struct {
	Products       []Product     `json:"products,omitempty"`
	SceneContext   *SceneContext `json:"sceneContext,omitempty"`
	WelcomeMessage string        `json:"welcomeMessage,omitempty"`
	WelcomeSubtext string        `json:"welcomeSubtext,omitempty"`
	CheckoutData   *CheckoutData `json:"checkoutData,omitempty"`
	CustomerEmail  string        `json:"customerEmail,omitempty"`
	Captures       []Capture     `json:"captures,omitempty"`
}

// SceneContext steers scene setting and background generation.
type SceneContext struct {
	Setting string `json:"setting,omitempty"`
	Mood    string `json:"mood,omitempty"`
	// GenerateBackground is tri-state: nil means the default for the action.
	GenerateBackground *bool  `json:"generateBackground,omitempty"`
	BackgroundPrompt   string `json:"backgroundPrompt,omitempty"`
	EditMode           bool   `json:"editMode,omitempty"`
	CMSAssetID         string `json:"cmsAssetId,omitempty"`
	CMSTag             string `json:"cmsTag,omitempty"`
	SceneAssetID       string `json:"sceneAssetId,omitempty"`
	ImageURL           string `json:"imageUrl,omitempty"`
}

// CheckoutData describes a checkout or quote.
type CheckoutData struct {
	Products         []Product `json:"products,omitempty"`
	UseStoredPayment bool      `json:"useStoredPayment,omitempty"`
	IsQuote          bool      `json:"isQuote,omitempty"`
}

// Capture types reported by the agent after it records something.
const (
	CaptureContactCreated    = "contact_created"
	CaptureMeaningfulEvent   = "meaningful_event"
	CaptureProfileEnrichment = "profile_enrichment"
)

// Capture is a notification that the agent wrote to the profile store.
type Capture struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Bool returns a pointer to b, for optional directive flags.
func Bool(b bool) *bool { return &b }
