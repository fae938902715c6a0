// Package course содержит доменную модель учебного курса: реестр
// преподавателей и студентов, список оценочных испытаний и журнал оценок.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package course

import (
	"strings"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// TeacherEntry представляет запись преподавателя в реестре курса.
// Непустое имя означает, что аккаунт признан преподавателем.
type TeacherEntry struct {
	// Account - идентификатор аккаунта преподавателя.
	Account shared.AccountID

	// Name - отображаемое имя. Первая успешная запись окончательна:
	// повторные попытки для того же аккаунта молча игнорируются.
	Name string

	// AddedAt - время регистрации.
	AddedAt time.Time
}

// StudentRecord представляет запись студента. Существование записи - это
// единственный признак зачисления; отдельного флага нет, записи никогда
// не удаляются.
type StudentRecord struct {
	// Account - идентификатор аккаунта студента.
	Account shared.AccountID

	// Name - полное имя студента.
	Name string

	// IDDocument - номер удостоверяющего документа.
	IDDocument string

	// Email - адрес электронной почты (может быть пустым).
	Email string

	// Position - порядковый номер зачисления (стабильный, начиная с 0).
	Position int

	// EnrolledAt - время зачисления.
	EnrolledAt time.Time
}

// Evaluation представляет оценочное испытание. Испытания идентифицируются
// позицией в append-only последовательности: индексы стабильны навсегда,
// никогда не переиспользуются и не переупорядочиваются.
type Evaluation struct {
	// Index - позиция в последовательности испытаний.
	Index int

	// Name - название испытания.
	Name string

	// DueAt - срок сдачи.
	DueAt time.Time

	// Weight - вес в процентных пунктах. Сумма весов по курсу
	// НЕ обязана равняться 100.
	Weight shared.Weight

	// MinPassScore - минимальный проходной балл, хранится x100.
	MinPassScore shared.Score

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// GradeKey - ключ ячейки оценки: (студент, индекс испытания).
type GradeKey struct {
	Student   shared.AccountID
	EvalIndex int
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN AGGREGATE: COURSE
// ══════════════════════════════════════════════════════════════════════════════

// Course - агрегат учебного курса. Все мутации проходят через охраняемые
// операции ниже; неудачная проверка прерывает операцию целиком, без
// частичных изменений состояния.
type Course struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID shared.CourseID

	// Name - название курса.
	Name string

	// Term - учебный период.
	Term shared.Term

	// Owner - владелец курса. Устанавливается ровно один раз при создании
	// из аккаунта создателя и больше никогда не меняется.
	Owner shared.AccountID

	// Coordinator - координатор курса. Может быть переназначен владельцем,
	// пока курс открыт.
	Coordinator shared.AccountID

	// Closed - флаг жизненного цикла. Переводится в true ровно один раз
	// и необратимо.
	Closed bool

	// Teachers - реестр преподавателей (первая запись окончательна).
	Teachers map[shared.AccountID]TeacherEntry

	// Students - записи студентов по аккаунту.
	Students map[shared.AccountID]StudentRecord

	// EnrollmentOrder - аккаунты студентов в порядке зачисления.
	EnrollmentOrder []shared.AccountID

	// Evaluations - append-only список испытаний.
	Evaluations []Evaluation

	// Grades - ячейки оценок. Отсутствие ключа означает GradeEmpty.
	Grades map[GradeKey]GradeCell

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time

	// ClosedAt - время закрытия (нулевое, пока курс открыт).
	ClosedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewCourseParams содержит параметры для создания нового курса.
type NewCourseParams struct {
	ID      shared.CourseID
	Name    string
	Term    string
	Creator shared.AccountID
}

// NewCourse создаёт новый курс. Создатель становится владельцем;
// координатор изначально не назначен. Название и период обязательны.
func NewCourse(params NewCourseParams) (*Course, error) {
	if params.ID.IsEmpty() {
		return nil, shared.NewDomainError("course", "NewCourse", shared.ErrInvalidID, "course id is required")
	}
	if !params.Creator.IsValid() {
		return nil, shared.NewDomainError("course", "NewCourse", shared.ErrInvalidID, "creator account is required")
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.NewDomainError("course", "NewCourse", shared.ErrEmptyField, "course name is required")
	}

	term := shared.Term(strings.TrimSpace(params.Term))
	if !term.IsValid() {
		return nil, shared.NewDomainError("course", "NewCourse", shared.ErrEmptyField, "academic term is required")
	}

	now := time.Now().UTC()

	return &Course{
		ID:              params.ID,
		Name:            name,
		Term:            term,
		Owner:           params.Creator,
		Closed:          false,
		Teachers:        make(map[shared.AccountID]TeacherEntry),
		Students:        make(map[shared.AccountID]StudentRecord),
		EnrollmentOrder: make([]shared.AccountID, 0),
		Evaluations:     make([]Evaluation, 0),
		Grades:          make(map[GradeKey]GradeCell),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE CONTROLLER
// Два состояния: Open (начальное) -> Closed (терминальное). Обратного
// перехода не существует. Пока курс закрыт, все мутации отклоняются
// предикатом Open; все запросы остаются доступными бессрочно.
// ══════════════════════════════════════════════════════════════════════════════

// Close закрывает курс. Guard: {Coordinator, Open}.
func (c *Course) Close(caller shared.AccountID) error {
	if err := c.Guard(caller, IsCoordinator, IsOpen); err != nil {
		return err
	}

	now := time.Now().UTC()
	c.Closed = true
	c.ClosedAt = now
	c.UpdatedAt = now
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// SetCoordinator безусловно переназначает координатора.
// Guard: {Owner, Open}.
func (c *Course) SetCoordinator(caller, coordinator shared.AccountID) error {
	if err := c.Guard(caller, IsOwner, IsOpen); err != nil {
		return err
	}
	if !coordinator.IsValid() {
		return shared.NewDomainError("roster", "SetCoordinator", shared.ErrInvalidID, "coordinator account is required")
	}

	c.Coordinator = coordinator
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// AddTeacher регистрирует аккаунт как преподавателя. Guard: {Owner, Open}.
// Первая запись для аккаунта окончательна: повторный вызов для того же
// аккаунта - молчаливый no-op, не ошибка. Возвращает true, если запись
// действительно была создана.
func (c *Course) AddTeacher(caller, account shared.AccountID, name string) (bool, error) {
	if err := c.Guard(caller, IsOwner, IsOpen); err != nil {
		return false, err
	}
	if !account.IsValid() {
		return false, shared.NewDomainError("roster", "AddTeacher", shared.ErrInvalidID, "teacher account is required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return false, shared.NewDomainError("roster", "AddTeacher", shared.ErrEmptyField, "teacher name is required")
	}

	if _, exists := c.Teachers[account]; exists {
		return false, nil
	}

	now := time.Now().UTC()
	c.Teachers[account] = TeacherEntry{
		Account: account,
		Name:    name,
		AddedAt: now,
	}
	c.UpdatedAt = now
	return true, nil
}

// EnrollByAdmin зачисляет студента от имени владельца. Guard: {Owner, Open}.
// Повторное зачисление того же аккаунта - ошибка.
func (c *Course) EnrollByAdmin(caller, account shared.AccountID, name, idDoc, email string) error {
	if err := c.Guard(caller, IsOwner, IsOpen); err != nil {
		return err
	}
	if !account.IsValid() {
		return shared.NewDomainError("roster", "EnrollByAdmin", shared.ErrInvalidID, "student account is required")
	}
	if _, exists := c.Students[account]; exists {
		return shared.NewDomainError("roster", "EnrollByAdmin", shared.ErrAlreadyEnrolled, "account already has a student record")
	}
	return c.enroll("EnrollByAdmin", account, name, idDoc, email)
}

// SelfEnroll зачисляет самого вызывающего. Guard: {NotEnrolled}.
// Доступен и после закрытия курса не ограничивается предикатом Open -
// состав охраны ровно такой, как объявлен.
func (c *Course) SelfEnroll(caller shared.AccountID, name, idDoc, email string) error {
	if err := c.Guard(caller, IsNotEnrolled); err != nil {
		return err
	}

	// Проверка собственного слота на уже записанный документ. После
	// успешного предиката NotEnrolled слот вызывающего пуст, так что
	// сработать она не может; глобальная уникальность документов по
	// всем студентам не обеспечивается.
	if c.Students[caller].IDDocument != "" {
		return shared.NewDomainError("roster", "SelfEnroll", shared.ErrDuplicateDocument, "identification document already on record")
	}

	return c.enroll("SelfEnroll", caller, name, idDoc, email)
}

// enroll - общий путь создания записи студента для обоих способов зачисления.
func (c *Course) enroll(op string, account shared.AccountID, name, idDoc, email string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("roster", op, shared.ErrEmptyField, "student name is required")
	}

	idDoc = strings.TrimSpace(idDoc)
	if idDoc == "" {
		return shared.NewDomainError("roster", op, shared.ErrEmptyField, "identification document is required")
	}

	now := time.Now().UTC()
	c.Students[account] = StudentRecord{
		Account:    account,
		Name:       name,
		IDDocument: idDoc,
		Email:      strings.TrimSpace(email),
		Position:   len(c.EnrollmentOrder),
		EnrolledAt: now,
	}
	c.EnrollmentOrder = append(c.EnrollmentOrder, account)
	c.UpdatedAt = now
	return nil
}

// StudentRecordOf возвращает запись студента.
// Возвращает ErrNotEnrolled, если записи нет.
func (c *Course) StudentRecordOf(account shared.AccountID) (StudentRecord, error) {
	rec, ok := c.Students[account]
	if !ok {
		return StudentRecord{}, shared.NewDomainError("roster", "StudentRecordOf", shared.ErrNotEnrolled, "no student record for account")
	}
	return rec, nil
}

// TeacherCount возвращает количество зарегистрированных преподавателей.
func (c *Course) TeacherCount() int {
	return len(c.Teachers)
}

// StudentCount возвращает количество зачисленных студентов.
func (c *Course) StudentCount() int {
	return len(c.EnrollmentOrder)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// CreateEvaluation добавляет новое испытание в конец списка и возвращает
// его индекс (равный прежней длине списка). Guard: {Teacher, Open}.
// Минимальный проходной балл принимается в целых единицах и хранится x100.
// Вес принимается как есть: сумма весов по курсу не проверяется.
func (c *Course) CreateEvaluation(caller shared.AccountID, name string, dueAt time.Time, weightPct, minPassUnits int) (int, error) {
	if err := c.Guard(caller, IsTeacher, IsOpen); err != nil {
		return 0, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return 0, shared.NewDomainError("evaluation", "CreateEvaluation", shared.ErrEmptyField, "evaluation name is required")
	}

	weight := shared.Weight(weightPct)
	if !weight.IsValid() {
		return 0, shared.NewDomainError("evaluation", "CreateEvaluation", shared.ErrInvalidInput, "weight must be non-negative")
	}

	now := time.Now().UTC()
	index := len(c.Evaluations)
	c.Evaluations = append(c.Evaluations, Evaluation{
		Index:        index,
		Name:         name,
		DueAt:        dueAt,
		Weight:       weight,
		MinPassScore: shared.Score(minPassUnits * shared.ScoreScale),
		CreatedAt:    now,
	})
	c.UpdatedAt = now
	return index, nil
}

// EvaluationAt возвращает испытание по индексу.
// Возвращает ErrInvalidEvaluationIndex для несуществующего индекса.
func (c *Course) EvaluationAt(index int) (Evaluation, error) {
	if index < 0 || index >= len(c.Evaluations) {
		return Evaluation{}, shared.NewDomainError("evaluation", "EvaluationAt", shared.ErrInvalidEvaluationIndex, "no evaluation at index")
	}
	return c.Evaluations[index], nil
}

// EvaluationCount возвращает количество испытаний.
func (c *Course) EvaluationCount() int {
	return len(c.Evaluations)
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE STORE
// ══════════════════════════════════════════════════════════════════════════════

// SetGrade записывает ячейку оценки, безусловно перезаписывая прежнее
// значение (история не хранится). Guard: {Teacher, Open}. Студент должен
// быть зачислен, индекс - существовать. Числовой балл принимается в целых
// единицах, хранится x100 и не может превышать 10.00.
func (c *Course) SetGrade(caller, student shared.AccountID, evalIndex int, kind GradeKind, rawUnits int) error {
	if err := c.Guard(caller, IsTeacher, IsOpen); err != nil {
		return err
	}
	if _, ok := c.Students[student]; !ok {
		return shared.NewDomainError("grading", "SetGrade", shared.ErrNotEnrolled, "student is not enrolled")
	}
	if evalIndex < 0 || evalIndex >= len(c.Evaluations) {
		return shared.NewDomainError("grading", "SetGrade", shared.ErrInvalidEvaluationIndex, "no evaluation at index")
	}

	cell, err := NewGradeCell(kind, rawUnits)
	if err != nil {
		return err
	}

	c.Grades[GradeKey{Student: student, EvalIndex: evalIndex}] = cell
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// GradeAt возвращает ячейку оценки для пары (студент, индекс). Для пары,
// в которую никогда не писали, возвращается пустая ячейка (GradeEmpty, 0).
// Возвращает ErrInvalidEvaluationIndex для несуществующего индекса.
func (c *Course) GradeAt(student shared.AccountID, evalIndex int) (GradeCell, error) {
	if evalIndex < 0 || evalIndex >= len(c.Evaluations) {
		return GradeCell{}, shared.NewDomainError("grading", "GradeAt", shared.ErrInvalidEvaluationIndex, "no evaluation at index")
	}
	return c.Grades[GradeKey{Student: student, EvalIndex: evalIndex}], nil
}

// OwnGradeAt - вариант GradeAt для самообслуживания. Guard: {Enrolled}.
// Студент читает только собственную ячейку.
func (c *Course) OwnGradeAt(caller shared.AccountID, evalIndex int) (GradeCell, error) {
	if err := c.Guard(caller, IsEnrolled); err != nil {
		return GradeCell{}, err
	}
	return c.GradeAt(caller, evalIndex)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Clone создаёт глубокую копию курса.
func (c *Course) Clone() *Course {
	if c == nil {
		return nil
	}

	clone := *c

	clone.Teachers = make(map[shared.AccountID]TeacherEntry, len(c.Teachers))
	for k, v := range c.Teachers {
		clone.Teachers[k] = v
	}

	clone.Students = make(map[shared.AccountID]StudentRecord, len(c.Students))
	for k, v := range c.Students {
		clone.Students[k] = v
	}

	clone.EnrollmentOrder = append([]shared.AccountID(nil), c.EnrollmentOrder...)
	clone.Evaluations = append([]Evaluation(nil), c.Evaluations...)

	clone.Grades = make(map[GradeKey]GradeCell, len(c.Grades))
	for k, v := range c.Grades {
		clone.Grades[k] = v
	}

	return &clone
}
