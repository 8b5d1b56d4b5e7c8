// Package model содержит доменные сущности сервиса bloodlink.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleDonorReceiver Role = "donor_receiver"
	RoleHospital      Role = "hospital"
)

// RequestStatus описывает статус заявки на кровь.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// RequestPriority описывает приоритет заявки.
type RequestPriority string

const (
	PriorityNormal    RequestPriority = "normal"
	PriorityEmergency RequestPriority = "emergency"
)

// BloodGroups перечисляет восемь канонических групп крови.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "O+", "O-", "AB+", "AB-"}

// User представляет донора/реципиента или госпиталь.
type User struct {
	ID                 string
	Username           string
	PasswordHash       []byte
	Role               Role
	Name               string
	Age                *int
	BloodGroup         *string
	Phone              *string
	Location           *string
	CanDonate          bool
	AvailabilityStatus bool
	DonationCount      int
	LastDonationDate   *time.Time
	IsVerified         bool
	CreatedByHospital  bool
	IDDocumentURL      *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BloodRequest описывает заявку на кровь и её жизненный цикл.
type BloodRequest struct {
	ID             string
	RequestedByID  string
	HospitalID     string
	BloodGroup     string
	Location       string
	Priority       RequestPriority
	UnitsNeeded    int
	Notes          *string
	Status         RequestStatus
	MatchedDonorID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BloodStock описывает запас крови госпиталя по одной группе.
type BloodStock struct {
	ID             string
	HospitalID     string
	BloodGroup     string
	UnitsAvailable int
	LastUpdated    time.Time
}

// Announcement описывает широковещательное или адресное уведомление.
type Announcement struct {
	ID               string
	Title            string
	Message          string
	TargetBloodGroup *string
	TargetUserID     *string
	CreatedBy        string
	CreatorName      string
	RequestID        *string
	CreatedAt        time.Time
}

// Stats содержит агрегированные показатели платформы.
type Stats struct {
	TotalDonors        int `json:"totalDonors"`
	AvailableDonors    int `json:"availableDonors"`
	PendingRequests    int `json:"pendingRequests"`
	CompletedDonations int `json:"completedDonations"`
	TotalHospitals     int `json:"totalHospitals"`
}
