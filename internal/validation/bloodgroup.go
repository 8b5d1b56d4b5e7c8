// Package validation содержит проверки входных данных сервиса bloodlink.
package validation

import "github.com/mmeshcher/bloodlink-system/internal/model"

// IsValidBloodGroup проверяет, что строка является одной из восьми канонических групп крови.
func IsValidBloodGroup(s string) bool {
	for _, bg := range model.BloodGroups {
		if s == bg {
			return true
		}
	}
	return false
}

// IsValidPriority проверяет значение приоритета заявки.
func IsValidPriority(s string) bool {
	return s == string(model.PriorityNormal) || s == string(model.PriorityEmergency)
}
