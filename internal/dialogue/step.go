// Package dialogue drives the guided intake conversation: a step state
// machine shared by all document flows, the chat/panel binding, and the
// per-session state it operates on.
package dialogue

import (
	"github.com/mzampetti/complybot/internal/document"
	"github.com/mzampetti/complybot/internal/record"
)

type StepID string

// StepKind selects the controller behavior for a step.
type StepKind string

const (
	// StepWelcome offers a confirm/edit entry into the flow, no field.
	StepWelcome StepKind = "welcome"
	// StepConfirm asks to confirm one field, with an edit sub-state.
	StepConfirm StepKind = "confirm"
	// StepCapture asks directly for a value; the next input supplies it.
	StepCapture StepKind = "capture"
	// StepCoppa is the two-question regulatory branch.
	StepCoppa StepKind = "coppa"
	// StepGenerate assembles the document.
	StepGenerate StepKind = "generate"
	// StepEditMore is the menu that re-enters earlier steps' edit states.
	StepEditMore StepKind = "edit_more"
	// StepDone ends the flow without a document.
	StepDone StepKind = "done"
)

// Step declares one stage of a flow. Prompt is computed from the live
// record so re-entered steps show current values.
type Step struct {
	ID           StepID
	Kind         StepKind
	Field        record.Field
	Prompt       func(b *record.Business) string
	ConfirmLabel string
	EditLabel    string
	InfoLabel    string
	InfoText     string
	EditPrompt   string
	Next         StepID
}

// Flow is a declarative step table. All flows share the one engine; adding
// a document type means adding a table, not another controller.
type Flow struct {
	Name  string
	Doc   document.Type
	Intro []string
	Start StepID
	Steps map[StepID]Step
	// Menu lists the steps offered by the edit-more menu, in flow order.
	Menu []StepID
}

func (f *Flow) step(id StepID) (Step, bool) {
	s, ok := f.Steps[id]
	return s, ok
}

// FieldStep finds the step owning a field, for edit re-entry.
func (f *Flow) FieldStep(field record.Field) (Step, bool) {
	for _, id := range f.Menu {
		if s, ok := f.Steps[id]; ok && s.Field == field {
			return s, true
		}
	}
	for _, s := range f.Steps {
		if s.Field == field {
			return s, true
		}
	}
	return Step{}, false
}

const (
	FlowPrivacy = "privacy"
	FlowTerms   = "terms"
	FlowProfile = "profile"
)

// Flows returns the built-in flow tables keyed by name.
func Flows() map[string]*Flow {
	return map[string]*Flow{
		FlowPrivacy: privacyFlow(),
		FlowTerms:   termsFlow(),
		FlowProfile: profileFlow(),
	}
}

func privacyFlow() *Flow {
	steps := []Step{
		{
			ID:   "welcome",
			Kind: StepWelcome,
			Prompt: func(*record.Business) string {
				return "Please confirm if the information shown on the right is correct."
			},
			ConfirmLabel: "Confirm",
			EditLabel:    "Edit",
			Next:         "name",
		},
		{
			ID:    "name",
			Kind:  StepConfirm,
			Field: record.FieldName,
			Prompt: func(b *record.Business) string {
				return "Is your business name \"" + b.Name + "\"?"
			},
			ConfirmLabel: "Confirm",
			EditLabel:    "Edit",
			EditPrompt:   "Please update your business name in the form on the right, or type your response below.",
			Next:         "email",
		},
		{
			ID:    "email",
			Kind:  StepConfirm,
			Field: record.FieldEmail,
			Prompt: func(b *record.Business) string {
				return "Is your business email \"" + b.Email + "\"?"
			},
			ConfirmLabel: "Confirm",
			EditLabel:    "Edit",
			EditPrompt:   "Please update your business email in the form on the right, or type your response below.",
			Next:         "jurisdiction",
		},
		{
			ID:    "jurisdiction",
			Kind:  StepConfirm,
			Field: record.FieldJurisdiction,
			Prompt: func(b *record.Business) string {
				return "Confirm that your business's legal jurisdiction is " + b.Jurisdiction +
					"? This is the state where you primarily do business."
			},
			ConfirmLabel: "Confirm",
			EditLabel:    "Edit",
			EditPrompt:   "Please update your business jurisdiction in the form on the right, or type your response below.",
			Next:         "coppa",
		},
		{
			ID:    "coppa",
			Kind:  StepCoppa,
			Field: record.FieldCoppa,
			Prompt: func(*record.Business) string {
				return "Does your business primarily serve children under the age of 13?"
			},
			InfoLabel: "Why is this important?",
			InfoText: "Businesses that primarily serve children under the age of 13, like daycares or schools, " +
				"will require additional security language geared toward protecting their privacy, as part of the " +
				"Children's Online Privacy Protection Act (COPPA).",
			Next: "generate",
		},
		{ID: "generate", Kind: StepGenerate, Next: "edit_more"},
		{ID: "edit_more", Kind: StepEditMore},
	}
	return &Flow{
		Name:  FlowPrivacy,
		Doc:   document.TypePrivacy,
		Intro: []string{"Let's work together on your Privacy Policy."},
		Start: "welcome",
		Steps: stepMap(steps),
		Menu:  []StepID{"name", "email", "jurisdiction", "coppa"},
	}
}

func termsFlow() *Flow {
	steps := []Step{
		{
			ID:    "name",
			Kind:  StepConfirm,
			Field: record.FieldName,
			Prompt: func(b *record.Business) string {
				return "Is your business name \"" + b.Name + "\"?"
			},
			ConfirmLabel: "Confirm",
			EditLabel:    "Edit",
			EditPrompt:   "Please update your business name in the form on the right, or type your response below.",
			Next:         "website",
		},
		{
			ID:    "website",
			Kind:  StepCapture,
			Field: record.FieldWebsite,
			Prompt: func(*record.Business) string {
				return "What is your website URL? This will be included in the Terms of Use. " +
					"You can enter it in the form panel, or type your response below."
			},
			Next: "services",
		},
		{
			ID:    "services",
			Kind:  StepCapture,
			Field: record.FieldServices,
			Prompt: func(*record.Business) string {
				return "Could you please describe the services your business provides? " +
					"You can enter them in the form panel, or type your response below."
			},
			Next: "generate",
		},
		{ID: "generate", Kind: StepGenerate, Next: "edit_more"},
		{ID: "edit_more", Kind: StepEditMore},
	}
	return &Flow{
		Name: FlowTerms,
		Doc:  document.TypeTerms,
		Intro: []string{
			"I can help you create a Terms of Use agreement for your business. " +
				"This document outlines the rules and guidelines for using your website or service.",
		},
		Start: "name",
		Steps: stepMap(steps),
		Menu:  []StepID{"name", "website", "services"},
	}
}

func profileFlow() *Flow {
	steps := []Step{
		{
			ID:   "welcome",
			Kind: StepWelcome,
			Prompt: func(*record.Business) string {
				return "Before I create your plan, I want to make sure I have a good understanding of your business."
			},
			ConfirmLabel: "Get Started",
			InfoLabel:    "Learn More",
			InfoText: "I can help you develop effective marketing strategies, analyze your target audience, " +
				"and optimize your marketing efforts. Would you like to get started now?",
			Next: "name",
		},
		{
			ID:    "name",
			Kind:  StepConfirm,
			Field: record.FieldName,
			Prompt: func(b *record.Business) string {
				return "I see from your profile that your business is called '" + b.Name + "'. Is this correct?"
			},
			ConfirmLabel: "Yes, that's correct",
			EditLabel:    "No, edit name",
			EditPrompt: "No problem! You can either type your business name here in the chat, " +
				"or use the form on the right to edit it. Both options work the same way.",
			Next: "category",
		},
		{
			ID:    "category",
			Kind:  StepConfirm,
			Field: record.FieldCategory,
			Prompt: func(b *record.Business) string {
				return "Great! I see you're in the " + b.Get(record.FieldCategory) + " industry. Is this correct?"
			},
			ConfirmLabel: "Yes, that's correct",
			EditLabel:    "No, change industry",
			EditPrompt: "No problem! You can either type your industry here in the chat, " +
				"or select it from the form on the right.",
			Next: "services",
		},
		{
			ID:    "services",
			Kind:  StepConfirm,
			Field: record.FieldServices,
			Prompt: func(b *record.Business) string {
				return "I can see you offer the following services: " + b.Get(record.FieldServices) +
					". Is this list correct?"
			},
			ConfirmLabel: "Yes, that's correct",
			EditLabel:    "No, edit services",
			EditPrompt: "No problem! You can either type your services here in the chat, " +
				"or use the form on the right to edit them.",
			Next: "market",
		},
		{
			ID:    "market",
			Kind:  StepConfirm,
			Field: record.FieldMarket,
			Prompt: func(b *record.Business) string {
				return "Now, where do you primarily do business? I have " + b.Get(record.FieldMarket) + "."
			},
			ConfirmLabel: "Confirm Market",
			EditLabel:    "Edit Market",
			EditPrompt:   "Please update your market in the form on the right, or type your response below.",
			Next:         "point_of_sale",
		},
		{
			ID:    "point_of_sale",
			Kind:  StepConfirm,
			Field: record.FieldPointOfSale,
			Prompt: func(b *record.Business) string {
				return "I see you primarily sell via " + b.Get(record.FieldPointOfSale) + ". Is this correct?"
			},
			ConfirmLabel: "Yes, that's correct",
			EditLabel:    "Edit point of sale",
			EditPrompt:   "Please update your point of sale in the form on the right, or type your response below.",
			Next:         "done",
		},
		{ID: "done", Kind: StepDone},
	}
	return &Flow{
		Name:  FlowProfile,
		Intro: []string{"Hi! I'm your personal marketing consultant."},
		Start: "welcome",
		Steps: stepMap(steps),
		Menu:  []StepID{"name", "category", "services", "market", "point_of_sale"},
	}
}

func stepMap(steps []Step) map[StepID]Step {
	m := make(map[StepID]Step, len(steps))
	for _, s := range steps {
		m[s.ID] = s
	}
	return m
}
