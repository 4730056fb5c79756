package validation

import (
	"fmt"
	"unicode"

	"kenalan/internal/constants"
	"kenalan/internal/errors"
	"kenalan/internal/models"
)

// ValidateProfile validates client-declared join fields. The values themselves
// are free-form and trusted; only presence and bounds are enforced.
func ValidateProfile(p models.Profile) error {
	if p.Name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "name is required").
			WithUserMessage("Name is required")
	}
	if p.Room == "" {
		return errors.New(errors.ErrCodeInvalidInput, "room is required").
			WithUserMessage("Room is required")
	}
	if err := ValidateStringLength(p.Name, "name", 1, constants.MaxNameLength); err != nil {
		return err
	}
	if err := ValidateStringLength(p.Room, "room", 1, constants.MaxRoomNameLength); err != nil {
		return err
	}
	for field, value := range map[string]string{
		"age":      p.Age,
		"gender":   p.Gender,
		"job":      p.Job,
		"photo":    p.Photo,
		"location": p.Location,
	} {
		if err := ValidateStringLength(value, field, 0, constants.MaxProfileField); err != nil {
			return err
		}
	}
	if containsControlChars(p.Name) || containsControlChars(p.Room) {
		return errors.New(errors.ErrCodeInvalidInput, "field contains invalid characters").
			WithUserMessage("Name and room must not contain control characters")
	}
	return nil
}

// ValidateMessageText validates a chat message body.
func ValidateMessageText(text string) error {
	if text == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message cannot be empty")
	}
	if len(text) > constants.MaxMessageLength {
		return errors.New(errors.ErrCodePayloadSize,
			fmt.Sprintf("message too long (max %d bytes)", constants.MaxMessageLength)).
			WithUserMessage("Message is too long")
	}
	return nil
}

// ValidateMessageID validates message ID format and length
func ValidateMessageID(messageID string) error {
	if messageID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message ID cannot be empty")
	}
	if len(messageID) > constants.MaxMessageIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message ID too long (max %d characters)", constants.MaxMessageIDLength))
	}
	for _, char := range messageID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "message ID contains invalid characters")
		}
	}
	return nil
}

// ValidateStringLength validates string length against bounds
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	if len(value) < minLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too short (min %d characters)", fieldName, minLength))
	}
	if len(value) > maxLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too long (max %d characters)", fieldName, maxLength))
	}
	return nil
}

func containsControlChars(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
