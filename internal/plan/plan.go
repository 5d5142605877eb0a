// Package plan holds the proposed/approved/rejected execution plans that
// gate multi-step canvas edits behind user approval.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrPlanNotFound = errors.New("plan not found")

type Status string

const (
	StatusProposed Status = "proposed"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Item is one ordered step of a plan.
type Item struct {
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Plan is the structured proposal produced by the planning step. One plan is
// live per conversation; a new proposal replaces the previous one.
type Plan struct {
	ID         string     `json:"id"`
	DesignType string     `json:"designType"`
	Dimensions Dimensions `json:"dimensions"`
	Items      []Item     `json:"items"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.Items = append([]Item(nil), p.Items...)
	return &out
}

// Instruction renders the follow-up prompt handed back to the agent once the
// plan is approved.
func (p *Plan) Instruction() string {
	var b strings.Builder
	b.WriteString("The plan has been approved. Here is the approved plan to execute:\n\n")
	fmt.Fprintf(&b, "Design Type: %s\n", p.DesignType)
	fmt.Fprintf(&b, "Canvas Dimensions: %d × %d pixels\n\n", p.Dimensions.Width, p.Dimensions.Height)
	b.WriteString("Steps to execute in order:\n")
	for i, item := range p.Items {
		fmt.Fprintf(&b, "%d. %s", i+1, item.Description)
		if item.Details != "" {
			fmt.Fprintf(&b, "\n   Details: %s", item.Details)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nExecute these steps now using the available tools.")
	return b.String()
}

// RejectionInstruction renders the follow-up prompt after a rejection.
func RejectionInstruction(feedback string) string {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		feedback = "Plan rejected"
	}
	return fmt.Sprintf("The plan was rejected. User feedback: %q. Please create a new plan addressing this feedback.", feedback)
}

// Registry keeps the live plan per conversation.
type Registry struct {
	mu    sync.RWMutex
	plans map[string]*Plan
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		plans: make(map[string]*Plan),
		now:   time.Now,
	}
}

// Propose stores a new proposed plan for the conversation, replacing any
// previous one, and returns it with id and timestamps assigned.
func (r *Registry) Propose(conversationID, designType string, dims Dimensions, items []Item) *Plan {
	conversationID = strings.TrimSpace(conversationID)
	now := r.now()
	p := &Plan{
		ID:         uuid.NewString(),
		DesignType: strings.TrimSpace(designType),
		Dimensions: dims,
		Items:      append([]Item(nil), items...),
		Status:     StatusProposed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.mu.Lock()
	r.plans[conversationID] = p
	r.mu.Unlock()
	return p.Clone()
}

// Get returns a clone of the conversation's live plan, or nil.
func (r *Registry) Get(conversationID string) *Plan {
	conversationID = strings.TrimSpace(conversationID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plans[conversationID].Clone()
}

// HasProposed reports whether the conversation has a plan still awaiting a
// decision.
func (r *Registry) HasProposed(conversationID string) bool {
	conversationID = strings.TrimSpace(conversationID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.plans[conversationID]
	return p != nil && p.Status == StatusProposed
}

// Approve flips the identified plan to approved. ErrPlanNotFound if the
// conversation has no plan or the id does not match the live plan.
func (r *Registry) Approve(conversationID, planID string) (*Plan, error) {
	return r.decide(conversationID, planID, StatusApproved)
}

// Reject flips the identified plan to rejected.
func (r *Registry) Reject(conversationID, planID string) (*Plan, error) {
	return r.decide(conversationID, planID, StatusRejected)
}

func (r *Registry) decide(conversationID, planID string, status Status) (*Plan, error) {
	conversationID = strings.TrimSpace(conversationID)
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.plans[conversationID]
	if p == nil || p.ID != strings.TrimSpace(planID) {
		return nil, ErrPlanNotFound
	}
	p.Status = status
	p.UpdatedAt = r.now()
	return p.Clone(), nil
}
