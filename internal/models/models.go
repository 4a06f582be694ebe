package models

import (
	"time"

	"scriptportal-backend-go/internal/rubric"
)

type Script struct {
	ID              string             `db:"id" json:"id"`
	Title           string             `db:"title" json:"title"`
	AuthorName      string             `db:"author_name" json:"authorName"`
	AuthorEmail     string             `db:"author_email" json:"authorEmail"`
	AuthorPhone     *string            `db:"author_phone" json:"authorPhone,omitempty"`
	FileURL         string             `db:"file_url" json:"fileUrl"`
	FileName        string             `db:"file_name" json:"fileName"`
	FileKey         string             `db:"file_key" json:"-"`
	FileChecksum    *string            `db:"file_checksum" json:"fileChecksum,omitempty"`
	Amount          int64              `db:"amount" json:"amount"`
	OriginalAmount  int64              `db:"original_amount" json:"originalAmount"`
	DiscountCode    *string            `db:"discount_code" json:"discountCode,omitempty"`
	TierID          string             `db:"tier_id" json:"tierId"`
	TierName        string             `db:"tier_name" json:"tierName"`
	Granularity     rubric.Granularity `db:"granularity" json:"granularity"`
	PaymentStatus   PaymentStatus      `db:"payment_status" json:"paymentStatus"`
	Status          ScriptStatus       `db:"status" json:"status"`
	AssignedJudgeID *string            `db:"assigned_judge_id" json:"assignedJudgeId,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"createdAt"`
	ReviewedAt      *time.Time         `db:"reviewed_at" json:"reviewedAt,omitempty"`
}

// Contractor is a reviewer account; the table keeps its historical name "judges".
type Contractor struct {
	ID                   string           `db:"id" json:"id"`
	Name                 string           `db:"name" json:"name"`
	Email                string           `db:"email" json:"email"`
	PasswordHash         string           `db:"password_hash" json:"-"`
	Status               ContractorStatus `db:"status" json:"status"`
	Specialization       *string          `db:"specialization" json:"specialization,omitempty"`
	CurrentWorkload      int              `db:"current_workload" json:"currentWorkload"`
	TotalScriptsReviewed int              `db:"total_scripts_reviewed" json:"totalScriptsReviewed"`
	Availability         *string          `db:"availability" json:"availability,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"createdAt"`
}

type Admin struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	PasswordHash string     `db:"password_hash"`
	CreatedAt    time.Time  `db:"created_at"`
	LastLoginAt  *time.Time `db:"last_login_at"`
}

type Review struct {
	ID             string       `db:"id"`
	ScriptID       string       `db:"script_id"`
	JudgeID        string       `db:"judge_id"`
	Status         ReviewStatus `db:"status"`
	Recommendation *string      `db:"recommendation"`
	Feedback       *string      `db:"feedback"`
	OverallNotes   *string      `db:"overall_notes"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	SubmittedAt    *time.Time   `db:"submitted_at"`
	rubric.Row
}

type PageNote struct {
	ID             string    `db:"id" json:"id"`
	ScriptReviewID string    `db:"script_review_id" json:"scriptReviewId"`
	PageNumber     int       `db:"page_number" json:"pageNumber"`
	NoteContent    string    `db:"note_content" json:"noteContent"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

type PageRubric struct {
	ID             string    `db:"id"`
	ScriptReviewID string    `db:"script_review_id"`
	PageNumber     int       `db:"page_number"`
	UpdatedAt      time.Time `db:"updated_at"`
	rubric.Row
}

type Contact struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Email     string        `db:"email" json:"email"`
	Phone     *string       `db:"phone" json:"phone,omitempty"`
	Subject   *string       `db:"subject" json:"subject,omitempty"`
	Message   string        `db:"message" json:"message"`
	Status    ContactStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

type SiteSetting struct {
	Key       string    `db:"key" json:"key"`
	Value     JSON      `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type ActivityEntry struct {
	ID         string    `db:"id" json:"id"`
	ActorType  string    `db:"actor_type" json:"actorType"`
	ActorID    *string   `db:"actor_id" json:"actorId,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   *string   `db:"entity_id" json:"entityId,omitempty"`
	Details    JSON      `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Tier is a priced service level.
type Tier struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Amount      int64              `json:"amount" yaml:"amount"`
	Test        bool               `json:"test" yaml:"test"`
	Granularity rubric.Granularity `json:"granularity" yaml:"granularity"`
}

type ServerMetricSample struct {
	ID                string    `db:"id"`
	CapturedAt        time.Time `db:"captured_at"`
	HeapUsedBytes     int64     `db:"heap_used_bytes"`
	HeapMaxBytes      int64     `db:"heap_max_bytes"`
	SystemMemoryTotal int64     `db:"system_memory_total_bytes"`
	SystemMemoryUsed  int64     `db:"system_memory_used_bytes"`
	DiskTotalBytes    int64     `db:"disk_total_bytes"`
	DiskUsedBytes     int64     `db:"disk_used_bytes"`
	ProcessCpuLoad    float64   `db:"process_cpu_load"`
	SystemCpuLoad     float64   `db:"system_cpu_load"`
}
