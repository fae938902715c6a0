package course

import (
	"context"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранения агрегата курса.
// Ядро не реализует собственных блокировок: сериализацию конкурентных
// вызовов и атомарность эффектов обеспечивает хостинговый слой
// (см. UnitOfWork).
type Repository interface {
	// Create сохраняет новый курс.
	// Возвращает shared.ErrAlreadyExists, если курс уже существует.
	Create(ctx context.Context, c *Course) error

	// Get загружает агрегат целиком: курс, реестры, испытания и оценки.
	// Возвращает shared.ErrNotFound, если курса нет.
	Get(ctx context.Context, id shared.CourseID) (*Course, error)

	// List возвращает идентификаторы всех курсов.
	List(ctx context.Context) ([]shared.CourseID, error)

	// UpdateCoordinator переписывает координатора курса.
	UpdateCoordinator(ctx context.Context, id shared.CourseID, coordinator shared.AccountID) error

	// MarkClosed необратимо помечает курс закрытым.
	MarkClosed(ctx context.Context, id shared.CourseID, closedAt time.Time) error

	// InsertTeacher добавляет запись преподавателя, только если записи
	// для аккаунта ещё нет (первая запись окончательна).
	InsertTeacher(ctx context.Context, id shared.CourseID, entry TeacherEntry) error

	// InsertStudent добавляет запись студента.
	// Возвращает shared.ErrAlreadyEnrolled при существующей записи.
	InsertStudent(ctx context.Context, id shared.CourseID, rec StudentRecord) error

	// AppendEvaluation добавляет испытание с его стабильным индексом.
	AppendEvaluation(ctx context.Context, id shared.CourseID, eval Evaluation) error

	// UpsertGrade записывает ячейку оценки, перезаписывая прежнее значение.
	UpsertGrade(ctx context.Context, id shared.CourseID, key GradeKey, cell GradeCell) error
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK (для транзакций)
// Каждая команда выполняется внутри одной единицы работы: либо все её
// записи фиксируются, либо ни одна. Ранний отказ охраны откатывает
// операцию без наблюдаемых частичных изменений.
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork представляет единицу работы с транзакционной семантикой.
type UnitOfWork interface {
	// Courses возвращает репозиторий курсов в рамках транзакции.
	Courses() Repository

	// Commit фиксирует транзакцию.
	Commit(ctx context.Context) error

	// Rollback откатывает транзакцию.
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory создаёт единицы работы.
type UnitOfWorkFactory interface {
	// Begin начинает новую транзакцию.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// Для кеширования итоговых оценок и счётчиков (обычно Redis).
// ══════════════════════════════════════════════════════════════════════════════

// Counts - счётчики курса для публичного запроса counts.
type Counts struct {
	Teachers    int `json:"teachers"`
	Students    int `json:"students"`
	Evaluations int `json:"evaluations"`
}

// FinalCache определяет операции кеширования вычисленных итогов.
type FinalCache interface {
	// GetFinal возвращает закешированный итог студента.
	// Возвращает shared.ErrNotFound при промахе кеша.
	GetFinal(ctx context.Context, id shared.CourseID, student shared.AccountID) (FinalGrade, error)

	// SetFinal сохраняет итог студента с TTL.
	SetFinal(ctx context.Context, id shared.CourseID, student shared.AccountID, final FinalGrade, ttl time.Duration) error

	// InvalidateFinals сбрасывает все итоги курса (после новой оценки
	// или нового испытания).
	InvalidateFinals(ctx context.Context, id shared.CourseID) error

	// GetCounts возвращает закешированные счётчики курса.
	// Возвращает shared.ErrNotFound при промахе кеша.
	GetCounts(ctx context.Context, id shared.CourseID) (Counts, error)

	// SetCounts сохраняет счётчики курса с TTL.
	SetCounts(ctx context.Context, id shared.CourseID, counts Counts, ttl time.Duration) error
}
