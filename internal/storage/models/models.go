package models

import "time"

// Qualification tiers. A company's tier is always derivable from its score
// and the thresholds that were active when it was scored.
const (
	TierHighPriority   = "high_priority"
	TierMediumPriority = "medium_priority"
	TierDisqualified   = "disqualified"
	TierUnscored       = "unscored"
)

// Maturity labels derived from which signal categories fired.
const (
	MaturityProduction        = "production"
	MaturityActiveDevelopment = "active_development"
	MaturityExperimenting     = "experimenting"
	MaturityUnknown           = "unknown"
)

// Contact outreach statuses.
const (
	ContactPending        = "pending"
	ContactActive         = "active"
	ContactCompleted      = "completed"
	ContactBounced        = "bounced"
	ContactReplied        = "replied"
	ContactSuppressed     = "suppressed"
	ContactActiveLead     = "active_lead"
	ContactDeferred       = "deferred"
	ContactOptOut         = "opt_out"
	ContactReferralNeeded = "referral_needed"
	ContactNotInterested  = "not_interested"
)

// ClassifiedContactStatuses are statuses set by reply classification. A
// generic "replied" must never overwrite any of these.
var ClassifiedContactStatuses = map[string]bool{
	ContactReplied:        true,
	ContactActiveLead:     true,
	ContactDeferred:       true,
	ContactOptOut:         true,
	ContactReferralNeeded: true,
	ContactNotInterested:  true,
}

// TerminalContactStatuses are excluded from all future sequencing passes.
var TerminalContactStatuses = map[string]bool{
	ContactCompleted:      true,
	ContactBounced:        true,
	ContactReplied:        true,
	ContactSuppressed:     true,
	ContactActiveLead:     true,
	ContactDeferred:       true,
	ContactOptOut:         true,
	ContactReferralNeeded: true,
	ContactNotInterested:  true,
}

// Outreach attempt statuses.
const (
	OutreachDraft   = "draft"
	OutreachQueued  = "queued"
	OutreachSent    = "sent"
	OutreachFailed  = "failed"
	OutreachBounced = "bounced"
	OutreachReplied = "replied"
)

// OutreachNonTerminal reports whether an attempt is still waiting on the
// transport. At most one non-terminal attempt may exist per contact.
func OutreachNonTerminal(status string) bool {
	return status == OutreachDraft || status == OutreachQueued
}

// Reply classifications produced by the inbox classifier.
const (
	ReplyInterest    = "interest"
	ReplyDeferral    = "deferral"
	ReplyIrrelevance = "irrelevance"
	ReplyReferral    = "referral"
	ReplyOptOut      = "opt_out"
)

// Suppression entry types.
const (
	SuppressionEmail  = "email"
	SuppressionDomain = "domain"
)

type Company struct {
	ID              string
	Domain          string
	Name            string
	Industry        string
	Content         string // raw text corpus; empty until scraped
	ContentHash     string
	IsScraped       bool
	IsScored        bool
	Score           int
	Tier            string
	Maturity        string
	LastScoredAt    *time.Time
	ScoredModelHash string // model content hash active at last scoring
	Metadata        Metadata
}

// Metadata is the company's enrichment record. Each writer owns exactly one
// namespace: the scorer writes Scoring, the risk enricher writes Risk, the
// context builder writes Context. Writers must never rewrite a namespace
// they do not own.
type Metadata struct {
	Scoring map[string]SignalMatch `json:"scoring,omitempty"`
	Risk    *RiskFlags             `json:"risk,omitempty"`
	Context *NarrativeContext      `json:"context,omitempty"`
}

// SignalMatch is the per-signal scoring breakdown stored on a company.
type SignalMatch struct {
	Category  string   `json:"category"`
	Count     int      `json:"count"`
	Intensity float64  `json:"intensity"`
	Matches   []string `json:"matches,omitempty"`
}

type RiskFlags struct {
	DetectedIndustries []string `json:"detected_industries,omitempty"`
	HasAuditLogging    bool     `json:"has_audit_logging"`
	HasRBAC            bool     `json:"has_rbac"`
	HasDataProtection  bool     `json:"has_data_protection"`
	HasComplianceCert  bool     `json:"has_compliance_cert"`
	IsEnterpriseReady  bool     `json:"is_enterprise_ready"`
}

type NarrativeContext struct {
	Integrations       []string `json:"integrations,omitempty"`
	ComplianceExposure []string `json:"compliance_exposure,omitempty"`
	GovernanceGaps     []string `json:"governance_gaps,omitempty"`
	Maturity           string   `json:"maturity,omitempty"`
	Narrative          string   `json:"narrative,omitempty"`
}

type Contact struct {
	ID                string
	CompanyID         string
	Name              string
	Title             string
	Email             string // empty until discovered/verified
	IsVerified        bool
	OutreachStage     int
	OutreachStatus    string
	CurrentOutreachID string // explicit pointer to the latest attempt
	LastSentAt        *time.Time
}

type Outreach struct {
	ID              string
	ContactID       string
	TemplateID      string
	Stage           int
	Status          string
	Subject         string
	Body            string
	SentAt          *time.Time
	ReplyReceivedAt *time.Time
	CreatedAt       time.Time
}

type Reply struct {
	ID             string
	ContactID      string
	Classification string
	Subject        string
	Content        string
	ReceivedAt     time.Time
}

type SuppressionEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskLog records one batch invocation outcome for a pipeline job.
type TaskLog struct {
	ID        string
	Job       string
	Status    string // completed | failed
	Message   string
	CreatedAt time.Time
}
