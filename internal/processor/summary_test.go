package processor

import (
	"testing"

	"resume-search/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestFormatResumeText(t *testing.T) {
	r := &models.Resume{
		Name:           "Ada",
		Email:          "ada@x.io",
		PhoneNumber:    strPtr("+1 555"),
		Skills:         datatypes.JSON(`{"Go": "expert", "Python": "x"}`),
		WorkExperience: datatypes.JSON(`[{"Position": "Engineer", "Company": "Acme", "Duration": "2019-2021", "Description": "Built things"}]`),
		Education:      datatypes.JSON(`[{"Degree": "BSc", "Institution": "MIT", "Year": 2018}]`),
		Certifications: datatypes.JSON(`["CKA", "AWS SA"]`),
		Projects:       datatypes.JSON(`[{"Name": "Search", "Description": "Resume search"}]`),
		GPA:            strPtr("3.8"),
	}

	expected := "Name: Ada\n" +
		"Email: ada@x.io\n" +
		"Phone: +1 555\n" +
		"\n" +
		"Skills: Go, Python\n" +
		"\n" +
		"Work Experience:\n" +
		"    Engineer at Acme (2019-2021) - Built things\n" +
		"\n" +
		"Education:\n" +
		"    BSc from MIT (2018)\n" +
		"\n" +
		"Certifications: CKA, AWS SA\n" +
		"\n" +
		"Projects:\n" +
		"    Search: Resume search\n" +
		"\n" +
		"GPA: 3.8"

	assert.Equal(t, expected, FormatResumeText(r))
	assert.Equal(t, expected, FormatResumeText(r), "输出应确定")
}

func TestFormatResumeText_MissingLists(t *testing.T) {
	r := &models.Resume{
		Name:   "Bob",
		Email:  "bob@x.io",
		Skills: datatypes.JSON(`["Rust"]`),
		// Role 作为 Position 的别名
		WorkExperience: datatypes.JSON(`[{"Role": "SRE", "Company": "Initech"}]`),
		Certifications: datatypes.JSON(`[{"Name": "CKA", "Year": 2020}]`),
	}

	expected := "Name: Bob\n" +
		"Email: bob@x.io\n" +
		"Phone: \n" +
		"\n" +
		"Skills: Rust\n" +
		"\n" +
		"Work Experience:\n" +
		"    SRE at Initech () - \n" +
		"\n" +
		"Education:\n" +
		"\n" +
		"Certifications: CKA\n" +
		"\n" +
		"Projects:\n" +
		"\n" +
		"GPA: "

	assert.Equal(t, expected, FormatResumeText(r))
}
