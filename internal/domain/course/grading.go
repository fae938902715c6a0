package course

import (
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE CELLS
// ══════════════════════════════════════════════════════════════════════════════

// GradeKind определяет вид значения в ячейке оценки.
type GradeKind int

const (
	// GradeEmpty - в ячейку ещё ничего не записано (значение по умолчанию).
	GradeEmpty GradeKind = iota

	// GradeNotPresented - студент не явился на испытание.
	GradeNotPresented

	// GradeNumeric - числовой балл.
	GradeNumeric
)

// String возвращает строковое представление вида оценки.
func (k GradeKind) String() string {
	switch k {
	case GradeEmpty:
		return "empty"
	case GradeNotPresented:
		return "not_presented"
	case GradeNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// IsValid проверяет, что вид оценки корректен.
func (k GradeKind) IsValid() bool {
	switch k {
	case GradeEmpty, GradeNotPresented, GradeNumeric:
		return true
	default:
		return false
	}
}

// ParseGradeKind разбирает строковое представление вида оценки.
func ParseGradeKind(s string) (GradeKind, error) {
	switch s {
	case "empty":
		return GradeEmpty, nil
	case "not_presented":
		return GradeNotPresented, nil
	case "numeric":
		return GradeNumeric, nil
	default:
		return GradeEmpty, shared.NewDomainError("grading", "ParseGradeKind", shared.ErrInvalidInput, "unknown grade kind: "+s)
	}
}

// GradeCell - ячейка оценки для пары (студент, испытание).
// Нулевое значение - ячейка GradeEmpty, как и для пары, в которую
// никогда не писали.
type GradeCell struct {
	// Kind - вид значения.
	Kind GradeKind

	// Score - балл x100; осмыслен только при Kind == GradeNumeric.
	Score shared.Score
}

// NewGradeCell создаёт ячейку для записи. Принимаются только
// GradeNotPresented и GradeNumeric: пустую ячейку записать нельзя.
// Числовой балл задаётся в целых единицах и масштабируется x100;
// значение выше 10.00 отклоняется с ошибкой диапазона.
func NewGradeCell(kind GradeKind, rawUnits int) (GradeCell, error) {
	switch kind {
	case GradeNotPresented:
		return GradeCell{Kind: GradeNotPresented}, nil
	case GradeNumeric:
		score := shared.Score(rawUnits * shared.ScoreScale)
		if !score.IsValid() {
			return GradeCell{}, shared.NewDomainError("grading", "NewGradeCell", shared.ErrScoreOutOfRange, "numeric score must be between 0 and 10")
		}
		return GradeCell{Kind: GradeNumeric, Score: score}, nil
	default:
		return GradeCell{}, shared.NewDomainError("grading", "NewGradeCell", shared.ErrInvalidInput, "grade kind must be not_presented or numeric")
	}
}

// IsSet возвращает true, если в ячейку что-то записано.
func (g GradeCell) IsSet() bool {
	return g.Kind != GradeEmpty
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE AGGREGATOR
// Чистая функция итоговой оценки. Оба входа - самообслуживание и запрос
// по идентификатору - обязаны звать ровно этот алгоритм: никаких
// расхождений в округлении или ограничении сверху.
// ══════════════════════════════════════════════════════════════════════════════

// FinalGrade - результат вычисления итоговой оценки.
type FinalGrade struct {
	// Kind - вид результата: GradeEmpty, если хотя бы одна ячейка пуста;
	// GradeNotPresented, если все записанные ячейки - неявки;
	// иначе GradeNumeric.
	Kind GradeKind

	// Score - итоговый балл x100 (0 для нечисловых видов).
	Score shared.Score
}

// ComputeFinal вычисляет итоговую оценку студента по списку испытаний
// в порядке индексов. Алгоритм:
//
//  1. Любая пустая ячейка немедленно даёт (GradeEmpty, 0) - одна
//     недостающая оценка блокирует итог.
//  2. Числовые ячейки накапливают score*weight и weight; неявки не
//     вносят ничего, но запоминаются.
//  3. При нулевом суммарном весе (все записанные ячейки - неявки)
//     итог равен (GradeNotPresented, 0).
//  4. Иначе final = floor(weightedSum / totalWeight) в точной
//     целочисленной арифметике.
//  5. Если среди испытаний была хотя бы одна неявка и final > 499,
//     итог ограничивается сверху значением 499.
//
// Функция не проверяет зачисление: для незачисленного студента все
// ячейки пусты и итог равен (GradeEmpty, 0) при непустом списке испытаний.
func (c *Course) ComputeFinal(student shared.AccountID) FinalGrade {
	var (
		weightedSum     int
		totalWeight     int
		sawNotPresented bool
	)

	for i := range c.Evaluations {
		cell := c.Grades[GradeKey{Student: student, EvalIndex: i}]
		switch cell.Kind {
		case GradeEmpty:
			return FinalGrade{Kind: GradeEmpty}
		case GradeNumeric:
			weightedSum += cell.Score.Int() * c.Evaluations[i].Weight.Int()
			totalWeight += c.Evaluations[i].Weight.Int()
		case GradeNotPresented:
			sawNotPresented = true
		}
	}

	if totalWeight == 0 {
		return FinalGrade{Kind: GradeNotPresented}
	}

	final := shared.Score(weightedSum / totalWeight)
	if sawNotPresented && final > shared.PassingCap {
		final = shared.PassingCap
	}

	return FinalGrade{Kind: GradeNumeric, Score: final}
}

// ComputeOwnFinal - вариант ComputeFinal для самообслуживания.
// Guard: {Enrolled}. Использует тот же алгоритм без изменений.
func (c *Course) ComputeOwnFinal(caller shared.AccountID) (FinalGrade, error) {
	if err := c.Guard(caller, IsEnrolled); err != nil {
		return FinalGrade{}, err
	}
	return c.ComputeFinal(caller), nil
}
