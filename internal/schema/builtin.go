package schema

import "github.com/scopewell/scope-copilot/internal/model"

// Built-in platform schemas. A schema directory loaded at startup can
// override any of these; the set of platforms stays closed either way.

const (
	PlatformTopcoderDesign      = "topcoder-design"
	PlatformTopcoderDevelopment = "topcoder-development"
	PlatformKaggleDataScience   = "kaggle-datascience"
)

// categories shared by the Topcoder schemas.
var topcoderCategories = []string{
	"web application",
	"mobile application",
	"api development",
	"data pipeline",
	"ui design",
	"team collaboration",
}

func builtinSchemas() []*model.Schema {
	design := mustSchema(PlatformTopcoderDesign, []model.FieldDef{
		{Name: "title", Required: true, Kind: model.KindText, Ceiling: 0.7,
			Question: "What would you call this project? A short working title is fine."},
		{Name: "category", Required: true, Kind: model.KindEnum, Enum: topcoderCategories, Ceiling: 0.7,
			Question: "What kind of project is this?"},
		{Name: "overview", Required: true, Kind: model.KindText, Ceiling: 0.8,
			Question: "Give me a few sentences on what this project should accomplish."},
		{Name: "objectives", Required: true, Kind: model.KindSet, Ceiling: 0.8,
			Question: "What concrete deliverables do you expect? List a few objectives."},
		{Name: "tech_stack", Kind: model.KindSet, Ceiling: 0.75,
			Question: "Any design tools or technologies the work should use?"},
		{Name: "timeline_days", Required: true, Kind: model.KindNumber, Min: fptr(3), Max: fptr(21), Ceiling: 0.75,
			Question: "How many days should contestants get to submit? Between 3 and 21 works well."},
		{Name: "prize_pool", Required: true, Kind: model.KindNumber, Min: fptr(0), Ceiling: 0.75,
			Question: "What total prize budget do you have in mind, in dollars?"},
		{Name: "judging_criteria", Kind: model.KindSet, Ceiling: 0.8,
			Question: "How should submissions be judged? List the criteria."},
	})

	development := mustSchema(PlatformTopcoderDevelopment, []model.FieldDef{
		{Name: "title", Required: true, Kind: model.KindText, Ceiling: 0.7,
			Question: "What would you call this project? A short working title is fine."},
		{Name: "category", Required: true, Kind: model.KindEnum, Enum: topcoderCategories, Ceiling: 0.7,
			Question: "What kind of project is this?"},
		{Name: "overview", Required: true, Kind: model.KindText, Ceiling: 0.8,
			Question: "Give me a few sentences on what this project should accomplish."},
		{Name: "objectives", Required: true, Kind: model.KindSet, Ceiling: 0.8,
			Question: "What concrete deliverables do you expect? List a few objectives."},
		{Name: "tech_stack", Required: true, Kind: model.KindSet, Ceiling: 0.75,
			Question: "Which languages, frameworks, or services should the implementation use?"},
		{Name: "timeline_days", Required: true, Kind: model.KindNumber, Min: fptr(3), Max: fptr(21), Ceiling: 0.75,
			Question: "How many days should contestants get to submit? Between 3 and 21 works well."},
		{Name: "prize_pool", Required: true, Kind: model.KindNumber, Min: fptr(0), Ceiling: 0.75,
			Question: "What total prize budget do you have in mind, in dollars?"},
		{Name: "submission_requirements", Kind: model.KindSet, Ceiling: 0.8,
			Question: "What must a submission include to count? Source, docs, tests?"},
	})

	kaggle := mustSchema(PlatformKaggleDataScience, []model.FieldDef{
		{Name: "title", Required: true, Kind: model.KindText, Ceiling: 0.7,
			Question: "What would you call this competition? A short working title is fine."},
		{Name: "overview", Required: true, Kind: model.KindText, Ceiling: 0.8,
			Question: "Give me a few sentences on the problem competitors should solve."},
		{Name: "dataset_description", Required: true, Kind: model.KindText, Ceiling: 0.8,
			Question: "What data will competitors work with? Describe the dataset."},
		{Name: "evaluation_metric", Required: true, Kind: model.KindEnum,
			Enum: []string{"accuracy", "auc", "f1", "rmse", "mae", "log loss"}, Ceiling: 0.75,
			Question: "How should submissions be scored?"},
		{Name: "timeline_days", Required: true, Kind: model.KindNumber, Min: fptr(7), Max: fptr(90), Ceiling: 0.75,
			Question: "How long should the competition run, in days?"},
		{Name: "prize_pool", Required: true, Kind: model.KindNumber, Min: fptr(0), Ceiling: 0.75,
			Question: "What total prize budget do you have in mind, in dollars?"},
		{Name: "submission_format", Kind: model.KindText, Ceiling: 0.8,
			Question: "What format should submissions take, e.g. a CSV of predictions?"},
	})

	return []*model.Schema{design, development, kaggle}
}

func mustSchema(platform string, fields []model.FieldDef) *model.Schema {
	s, err := model.NewSchema(platform, fields)
	if err != nil {
		panic(err) // built-ins are fixed at compile time
	}
	return s
}

func fptr(f float64) *float64 { return &f }
