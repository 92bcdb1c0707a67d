package service

import (
	"math"

	"freezefit/pkg/model"

	"github.com/shopspring/decimal"
)

// Levels is ordered by threshold. A level is reached by lifetime points, so
// redeeming never demotes.
var Levels = []model.LoyaltyLevel{
	{Name: model.LevelBronze, MinPoints: 0, Multiplier: 1.0},
	{Name: model.LevelSilver, MinPoints: 500, Multiplier: 1.1},
	{Name: model.LevelGold, MinPoints: 1500, Multiplier: 1.25},
	{Name: model.LevelPlatinum, MinPoints: 3000, Multiplier: 1.5},
	{Name: model.LevelDiamond, MinPoints: 6000, Multiplier: 2.0},
}

func LevelFor(lifetimePoints int) model.LoyaltyLevel {
	level := Levels[0]
	for _, l := range Levels {
		if lifetimePoints >= l.MinPoints {
			level = l
		}
	}
	return level
}

func levelByName(name string) model.LoyaltyLevel {
	for _, l := range Levels {
		if l.Name == name {
			return l
		}
	}
	return Levels[0]
}

// EarnedPoints is one point per full currency unit times the level
// multiplier, rounded down.
func EarnedPoints(price decimal.Decimal, level string) int {
	if price.Sign() <= 0 {
		return 0
	}
	mult := decimal.NewFromFloat(levelByName(level).Multiplier)
	return int(price.Floor().Mul(mult).Floor().IntPart())
}

// Status derives next-level progress from an account.
func Status(account model.LoyaltyAccount) *model.LoyaltyStatus {
	current := LevelFor(account.LifetimePoints)
	account.Level = current.Name

	status := &model.LoyaltyStatus{
		LoyaltyAccount:  account,
		Multiplier:      current.Multiplier,
		ProgressPercent: 100,
	}

	for i, l := range Levels {
		if l.Name != current.Name || i == len(Levels)-1 {
			continue
		}
		next := Levels[i+1]
		status.NextLevel = &next.Name
		status.PointsToNextLevel = next.MinPoints - account.LifetimePoints

		span := float64(next.MinPoints - current.MinPoints)
		done := float64(account.LifetimePoints - current.MinPoints)
		status.ProgressPercent = math.Round(done/span*1000) / 10
	}

	return status
}
