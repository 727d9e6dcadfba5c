package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30

	MinServiceTitleLength       = 3
	MaxServiceTitleLength       = 200
	MaxServiceDescriptionLength = 5000

	MinRequirementsLength = 0
	MaxRequirementsLength = 5000

	MinCancelReasonLength = 3
	MaxCancelReasonLength = 1000

	MinProgressNoteLength = 1
	MaxProgressNoteLength = 5000

	MinPrice = 0.01
	MaxPrice = 100000000.0 // 100 миллионов
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	// Базовая проверка формата
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	// Проверка на валидные символы в локальной части
	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	// Проверка на валидные символы в доменной части
	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	// Только буквы, цифры и подчеркивание
	usernameRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if len(username) > 0 && unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateServiceTitle проверяет название услуги.
func ValidateServiceTitle(title string) error {
	if title == "" {
		return fmt.Errorf("название услуги обязательно")
	}

	title = strings.TrimSpace(title)

	return ValidateLength("название услуги", title, MinServiceTitleLength, MaxServiceTitleLength)
}

// ValidateServiceDescription проверяет описание услуги.
func ValidateServiceDescription(description string) error {
	description = strings.TrimSpace(description)
	return ValidateLength("описание услуги", description, 0, MaxServiceDescriptionLength)
}

// ValidatePrice проверяет цену услуги.
func ValidatePrice(price float64) error {
	if price < MinPrice {
		return fmt.Errorf("цена должна быть положительной")
	}
	if price > MaxPrice {
		return fmt.Errorf("цена не может превышать %.0f", MaxPrice)
	}
	return nil
}

// ValidateRequirements проверяет требования покупателя к заказу.
func ValidateRequirements(requirements *string) error {
	if requirements != nil && *requirements != "" {
		req := strings.TrimSpace(*requirements)
		return ValidateLength("требования к заказу", req, MinRequirementsLength, MaxRequirementsLength)
	}
	return nil
}

// ValidateCancelReason проверяет причину отмены заказа.
func ValidateCancelReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("причина отмены обязательна")
	}

	reason = strings.TrimSpace(reason)

	return ValidateLength("причина отмены", reason, MinCancelReasonLength, MaxCancelReasonLength)
}

// ValidateProgressNote проверяет текст отметки о ходе работы.
func ValidateProgressNote(note string) error {
	if strings.TrimSpace(note) == "" {
		return fmt.Errorf("текст отметки не может быть пустым")
	}

	note = strings.TrimSpace(note)

	return ValidateLength("текст отметки", note, MinProgressNoteLength, MaxProgressNoteLength)
}
