package course

import (
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCESS GATE
// Предикаты возможностей над текущим состоянием курса и аккаунтом
// вызывающего. Каждый предикат при отказе возвращает собственный вид
// ошибки. Мутирующие операции составляют из предикатов именованные
// наборы охраны; композиция обрывается на первом отказе.
// ══════════════════════════════════════════════════════════════════════════════

// Predicate - чистая проверка возможности для пары (курс, вызывающий).
type Predicate func(c *Course, caller shared.AccountID) error

// IsOwner проверяет, что вызывающий - владелец курса.
func IsOwner(c *Course, caller shared.AccountID) error {
	if caller != c.Owner {
		return shared.NewDomainError("access", "IsOwner", shared.ErrPermissionDenied, "caller is not the course owner")
	}
	return nil
}

// IsCoordinator проверяет, что вызывающий - координатор курса.
func IsCoordinator(c *Course, caller shared.AccountID) error {
	if !caller.IsValid() || caller != c.Coordinator {
		return shared.NewDomainError("access", "IsCoordinator", shared.ErrPermissionDenied, "caller is not the course coordinator")
	}
	return nil
}

// IsTeacher проверяет, что вызывающий зарегистрирован как преподаватель
// (имеет запись с непустым именем).
func IsTeacher(c *Course, caller shared.AccountID) error {
	if entry, ok := c.Teachers[caller]; !ok || entry.Name == "" {
		return shared.NewDomainError("access", "IsTeacher", shared.ErrPermissionDenied, "caller is not a registered teacher")
	}
	return nil
}

// IsEnrolled проверяет, что у вызывающего есть запись студента.
func IsEnrolled(c *Course, caller shared.AccountID) error {
	if _, ok := c.Students[caller]; !ok {
		return shared.NewDomainError("access", "IsEnrolled", shared.ErrNotEnrolled, "caller has no student record")
	}
	return nil
}

// IsNotEnrolled - отрицание IsEnrolled.
func IsNotEnrolled(c *Course, caller shared.AccountID) error {
	if _, ok := c.Students[caller]; ok {
		return shared.NewDomainError("access", "IsNotEnrolled", shared.ErrAlreadyEnrolled, "caller already has a student record")
	}
	return nil
}

// IsOpen проверяет предикат жизненного цикла: курс ещё не закрыт.
func IsOpen(c *Course, _ shared.AccountID) error {
	if c.Closed {
		return shared.NewDomainError("access", "IsOpen", shared.ErrCourseClosed, "course is closed")
	}
	return nil
}

// Guard последовательно применяет предикаты и возвращает первую ошибку.
// Порядок имеет значение: ролевые проверки идут раньше проверки
// жизненного цикла, как объявлено у каждой операции.
func (c *Course) Guard(caller shared.AccountID, predicates ...Predicate) error {
	for _, p := range predicates {
		if err := p(c, caller); err != nil {
			return err
		}
	}
	return nil
}
