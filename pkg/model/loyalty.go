package model

import "time"

const (
	LevelBronze   = "bronze"
	LevelSilver   = "silver"
	LevelGold     = "gold"
	LevelPlatinum = "platinum"
	LevelDiamond  = "diamond"
)

const (
	TransactionEarn   = "earn"
	TransactionRedeem = "redeem"
	TransactionBonus  = "bonus"
	TransactionAdjust = "adjust"
)

type LoyaltyAccount struct {
	UserID         string    `json:"user_id" db:"user_id"`
	Points         int       `json:"points" db:"points"`
	LifetimePoints int       `json:"lifetime_points" db:"lifetime_points"`
	Level          string    `json:"level" db:"level"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type LoyaltyTransaction struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Points      int       `json:"points" db:"points"`
	Type        string    `json:"type" db:"type"`
	Reason      string    `json:"reason" db:"reason"`
	ReferenceID *string   `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type LoyaltyLevel struct {
	Name       string  `json:"name"`
	MinPoints  int     `json:"min_points"`
	Multiplier float64 `json:"multiplier"`
}

type LoyaltyStatus struct {
	LoyaltyAccount
	Multiplier        float64 `json:"multiplier"`
	NextLevel         *string `json:"next_level"`
	PointsToNextLevel int     `json:"points_to_next_level"`
	ProgressPercent   float64 `json:"progress_percent"`
}

type PointsRequest struct {
	Points int    `json:"points" validate:"required,gt=0,max=100000"`
	Reason string `json:"reason" validate:"max=200"`
}

type AdjustRequest struct {
	Points int    `json:"points" validate:"required,ne=0,min=-100000,max=100000"`
	Reason string `json:"reason" validate:"notblank,max=200"`
}
