package model

import "time"

// MealScheduleRow is one scheduled feeding of a generated rotation. The four rows
// of a schedule share TimeStamp and ScheduleID.
type MealScheduleRow struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	ScheduleID     string    `gorm:"size:36;index;not null" json:"scheduleId"`
	TimeStamp      time.Time `gorm:"column:time_stamp;index;not null" json:"timeStamp"`
	NextMeal       time.Time `gorm:"column:next_meals;not null" json:"nextMeal"`
	RemainingMeals int       `gorm:"column:remaining_meals;not null" json:"remainingMeals"`
}

// TableName keeps the table name the dashboard has always used.
func (MealScheduleRow) TableName() string {
	return "cat_meals"
}
