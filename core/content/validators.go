package content

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

var (
	oneParentTag  = "oneparent"
	oneParentText = "exactly one of {0} must be set"

	answerCountTag  = "answercount"
	answerCountText = "{0} does not fit the question kind"
)

// InitValidators registers the content validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(parentsStructValidation, Video{}, Document{}, Quiz{}, Testcase{})
	validate.RegisterStructValidation(questionStructValidation, Question{})

	_ = validate.RegisterTranslation(
		oneParentTag, translator,
		func(t ut.Translator) error { return t.Add(oneParentTag, oneParentText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(oneParentTag, fe.Param())
			return s
		},
	)
	core.RegisterCustomTranslation(validate, translator, answerCountTag, answerCountText)
}

func parentsStructValidation(sl validator.StructLevel) {
	check := func(first, second null.String, firstName, secondName, field string) {
		if first.Valid == second.Valid || (first.Valid && first.String == "") || (second.Valid && second.String == "") {
			sl.ReportError(first, firstName, field, oneParentTag, firstName+", "+secondName)
		}
	}

	switch it := sl.Current().Interface().(type) {
	case Video:
		check(it.ChapterID, it.SectionID, "chapter_id", "section_id", "ChapterID")
	case Document:
		check(it.ChapterID, it.SectionID, "chapter_id", "section_id", "ChapterID")
	case Quiz:
		check(it.ChapterID, it.SectionID, "chapter_id", "section_id", "ChapterID")
	case Testcase:
		check(it.AssignmentID, it.AssignmentSectionID, "assignment_id", "assignment_section_id", "AssignmentID")
	}
}

// questionStructValidation checks the answer key against the question kind.
func questionStructValidation(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	var ok bool
	switch q.QuestionType {
	case QuestionSingleCorrect:
		ok = len(q.Answer) == 1 && q.Options.Contains(q.Answer[0])
	case QuestionMultipleCorrect:
		ok = len(q.Answer) > 0
		for _, a := range q.Answer {
			ok = ok && q.Options.Contains(a)
		}
	case QuestionFixedAnswer:
		ok = len(q.Answer) > 0
	default:
		ok = true
	}
	if !ok {
		sl.ReportError(q.Answer, "answer", "Answer", answerCountTag, "")
	}
}
