// Package validation содержит функции валидации входных данных.
package validation

const (
	minUsernameLen = 3
	maxUsernameLen = 16
)

// IsValidUsername проверяет ник Minecraft: от 3 до 16 символов из латинских букв, цифр и подчёркивания.
func IsValidUsername(name string) bool {
	if len(name) < minUsernameLen || len(name) > maxUsernameLen {
		return false
	}

	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '_':
		default:
			return false
		}
	}

	return true
}
