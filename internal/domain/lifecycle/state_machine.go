// Пакет lifecycle — конечный автомат статусов записи очереди загрузки.
//
// Жизненный цикл:
//   - pending → uploading → completed
//   - pending → error, uploading → error
//   - uploading → uploading — очередной шаг прогресса
//
// completed и error — конечные статусы, из них переходов нет.
package lifecycle

import (
	"fmt"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// Коды ошибок перехода.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeTerminalState     = "TERMINAL_STATE"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[model.UploadStatus]map[model.UploadStatus]bool{
	model.UploadPending: {
		model.UploadUploading: true,
		model.UploadCompleted: true, // пустой файл завершается за один шаг
		model.UploadError:     true,
	},
	model.UploadUploading: {
		model.UploadUploading: true,
		model.UploadCompleted: true,
		model.UploadError:     true,
	},
	model.UploadCompleted: {},
	model.UploadError:     {},
}

// TransitionError — ошибка перехода между статусами.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION, TERMINAL_STATE)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsTerminal сообщает, что статус конечный.
func IsTerminal(s model.UploadStatus) bool {
	return s == model.UploadCompleted || s == model.UploadError
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to model.UploadStatus) bool {
	transitions, ok := validTransitions[from]
	if !ok {
		return false
	}
	return transitions[to]
}

// Validate возвращает *TransitionError, если переход from → to недопустим.
func Validate(from, to model.UploadStatus) error {
	if !isValidStatus(from) || !isValidStatus(to) {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("недопустимый статус: %q → %q", from, to),
		}
	}
	if IsTerminal(from) {
		return &TransitionError{
			Code:    CodeTerminalState,
			Message: fmt.Sprintf("статус %s конечный, переход в %s невозможен", from, to),
		}
	}
	if !CanTransition(from, to) {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход %s → %s недопустим", from, to),
		}
	}
	return nil
}

// isValidStatus проверяет, является ли строка допустимым статусом.
func isValidStatus(s model.UploadStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// ParseStatus преобразует строку в UploadStatus.
// Возвращает ошибку для недопустимых значений.
func ParseStatus(s string) (model.UploadStatus, error) {
	st := model.UploadStatus(s)
	if !isValidStatus(st) {
		return "", fmt.Errorf("недопустимый статус: %q, допустимые: pending, uploading, completed, error", s)
	}
	return st, nil
}
