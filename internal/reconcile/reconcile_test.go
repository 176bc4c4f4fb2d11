package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

func sampleProfile() *entity.ExtractedProfile {
	return (&entity.ExtractedProfile{
		PersonalInfo: entity.PersonalInfo{Name: "Jane Doe"},
		Experience: []entity.Experience{
			{
				Title: "Staff Engineer", Company: "Acme", Location: "Lisbon",
				StartDate: "Jan 2021", EndDate: "Present",
				Description:  "Platform team lead",
				Achievements: []string{"Cut p99 latency by 40%", "Led the Go migration"},
			},
			{
				Title: "Engineer", Company: "Globex",
				StartDate: "2017", EndDate: "2020",
				Achievements: []string{"Built the billing service"},
			},
		},
		Education: []entity.Education{
			{Degree: "MSc Computer Science", Institution: "IST", GraduationDate: "2016", GPA: "18/20", Achievements: []string{"Thesis on consensus"}},
		},
		Skills: entity.Skills{Technical: []string{"Go", "SQL"}, Soft: []string{"Mentoring"}, Languages: []string{"English", "Portuguese"}},
		Projects: []entity.Project{
			{Name: "cv-extractor", Description: "Turns CVs into JSON", Technologies: []string{"Go", "SQLite"}, URL: "https://example.com/cv"},
		},
		Certifications: []entity.Certification{
			{Name: "CKA", Issuer: "CNCF", Date: "2022"},
		},
	}).Normalize()
}

func TestRoundTrip(t *testing.T) {
	for _, section := range []constants.Section{
		constants.SectionExperience,
		constants.SectionEducation,
		constants.SectionSkills,
		constants.SectionProjects,
		constants.SectionCertifications,
	} {
		t.Run(string(section), func(t *testing.T) {
			p := sampleProfile()
			text, err := ToText(section, p)
			require.NoError(t, err)
			require.NotEmpty(t, text)

			got, rep, err := Reconcile(section, text, p)
			require.NoError(t, err)
			assert.Equal(t, sampleProfile(), got)
			assert.Zero(t, rep.Added)
			assert.Zero(t, rep.Dropped)
		})
	}
}

func TestRoundTrip_DatedDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
	}{
		{"year in sentence", "Promoted to staff in 2022"},
		{"month and year", "Since Mar 2023 owning the payments platform"},
		{"multi line", "Joined in 2019 as a contractor\nPromoted to staff in 2022"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sampleProfile()
			p.Experience[0].Description = tt.description
			want := p.Clone()

			text, err := ToText(constants.SectionExperience, p)
			require.NoError(t, err)

			got, rep, err := Reconcile(constants.SectionExperience, text, p)
			require.NoError(t, err)
			assert.Equal(t, Report{Blocks: 2, Anchored: 2}, rep)
			assert.Equal(t, want.Experience, got.Experience)
		})
	}
}

func TestFromText_DatedDescriptionUnderEditedHeader(t *testing.T) {
	p := sampleProfile()
	p.Experience[0].Description = "Promoted to staff in 2022"

	text := "Principal Engineer at Acme | Jan 2021 – Present\n" +
		"Promoted to staff in 2022\n" +
		"• Cut p99 latency by 40%\n" +
		"\n" +
		"Engineer at Globex | 2017 – 2020"

	got, rep, err := Reconcile(constants.SectionExperience, text, p)
	require.NoError(t, err)
	assert.Equal(t, Report{Blocks: 2, Anchored: 2}, rep)
	require.Len(t, got.Experience, 2)
	assert.Equal(t, "Staff Engineer", got.Experience[0].Title)
	assert.Equal(t, "Promoted to staff in 2022", got.Experience[0].Description)
	assert.Equal(t, []string{"Cut p99 latency by 40%"}, got.Experience[0].Achievements)
}

func TestToText_Experience(t *testing.T) {
	text, err := ToText(constants.SectionExperience, sampleProfile())
	require.NoError(t, err)
	want := "Staff Engineer at Acme | Jan 2021 – Present\n" +
		"Location: Lisbon\n" +
		"Platform team lead\n" +
		"• Cut p99 latency by 40%\n" +
		"• Led the Go migration\n" +
		"\n" +
		"Engineer at Globex | 2017 – 2020\n" +
		"• Built the billing service"
	assert.Equal(t, want, text)
}

func TestUnknownSection(t *testing.T) {
	_, err := ToText("hobbies", sampleProfile())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = FromText("hobbies", "", sampleProfile())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFromText_NoHeadersKeepsAnchor(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"prose only", "Worked on many things.\nSome more prose without dates"},
		{"bullets only", "• one\n- two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rep, err := Reconcile(constants.SectionExperience, tt.text, sampleProfile())
			require.NoError(t, err)
			assert.Equal(t, sampleProfile().Experience, got.Experience)
			assert.Zero(t, rep.Blocks)
		})
	}
}

func TestFromText_EditsBodyKeepsIdentity(t *testing.T) {
	text := "Staff Engineer at Acme | Jan 2021 – Present\n" +
		"Owns the platform roadmap\n" +
		"• Cut p99 latency by 50%\n" +
		"\n" +
		"Engineer at Globex | 2017 – 2020\n" +
		"• Built the billing service\n" +
		"• Added invoicing\n"

	got, err := FromText(constants.SectionExperience, text, sampleProfile())
	require.NoError(t, err)
	require.Len(t, got.Experience, 2)

	first := got.Experience[0]
	assert.Equal(t, "Staff Engineer", first.Title)
	assert.Equal(t, "Lisbon", first.Location, "anchor location survives a removed label line")
	assert.Equal(t, "Owns the platform roadmap", first.Description)
	assert.Equal(t, []string{"Cut p99 latency by 50%"}, first.Achievements)
	assert.Equal(t, []string{"Built the billing service", "Added invoicing"}, got.Experience[1].Achievements)
	assert.Equal(t, "Jane Doe", got.PersonalInfo.Name)
}

func TestFromText_CountMismatch(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantTitle []string
		want      Report
	}{
		{
			name:      "reordered blocks pair by header",
			text:      "Engineer at Globex | 2017 – 2020\n• a\n\nStaff Engineer at Acme | Jan 2021 – Present\n• b",
			wantTitle: []string{"Engineer", "Staff Engineer"},
			want:      Report{Blocks: 2, Anchored: 2},
		},
		{
			name:      "edited header pairs by position",
			text:      "Principal Engineer at Acme | 2021 – 2024\n• a\n\nEngineer at Globex | 2017 – 2020\n• b",
			wantTitle: []string{"Staff Engineer", "Engineer"},
			want:      Report{Blocks: 2, Anchored: 2},
		},
		{
			name:      "extra block is added",
			text:      "Staff Engineer at Acme | Jan 2021 – Present\n\nEngineer at Globex | 2017 – 2020\n\nIntern at Initech | 2016 – 2017\n• coffee",
			wantTitle: []string{"Staff Engineer", "Engineer", "Intern"},
			want:      Report{Blocks: 3, Anchored: 2, Added: 1},
		},
		{
			name:      "missing block is dropped",
			text:      "Engineer at Globex | 2017 – 2020\n• b",
			wantTitle: []string{"Engineer"},
			want:      Report{Blocks: 1, Anchored: 1, Dropped: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rep, err := Reconcile(constants.SectionExperience, tt.text, sampleProfile())
			require.NoError(t, err)
			var titles []string
			for _, e := range got.Experience {
				titles = append(titles, e.Title)
			}
			assert.Equal(t, tt.wantTitle, titles)
			assert.Equal(t, tt.want, rep)
		})
	}
}

func TestFromText_Unanchored(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   entity.Experience
	}{
		{"at with pipe", "Backend Developer at Hooli | 2019 – 2021",
			entity.Experience{Title: "Backend Developer", Company: "Hooli", StartDate: "2019", EndDate: "2021"}},
		{"dash with month dates", "Data Engineer - Initech, Mar 2018 to Present",
			entity.Experience{Title: "Data Engineer", Company: "Initech", StartDate: "Mar 2018", EndDate: "Present"}},
		{"at sign", "SRE @ Umbrella (2015 - 2017)",
			entity.Experience{Title: "SRE", Company: "Umbrella", StartDate: "2015", EndDate: "2017"}},
		{"no company", "Freelance consultant 2012 – 2014",
			entity.Experience{Title: "Freelance consultant", StartDate: "2012", EndDate: "2014"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "Profile intro is ignored\n" + tt.header + "\nLocation: Remote\n• shipped it"
			got, rep, err := Reconcile(constants.SectionExperience, text, nil)
			require.NoError(t, err)
			require.Len(t, got.Experience, 1)

			want := tt.want
			want.Location = "Remote"
			want.Achievements = []string{"shipped it"}
			assert.Equal(t, want, got.Experience[0])
			assert.Equal(t, Report{Blocks: 1, Added: 1}, rep)
		})
	}
}

func TestFromText_Education(t *testing.T) {
	text := "BSc Mathematics, University of Porto | 2010 – 2014\nGPA: 17/20\nDean's list"
	got, err := FromText(constants.SectionEducation, text, nil)
	require.NoError(t, err)
	require.Len(t, got.Education, 1)
	e := got.Education[0]
	assert.Equal(t, "BSc Mathematics", e.Degree)
	assert.Equal(t, "University of Porto", e.Institution)
	assert.Equal(t, "2014", e.GraduationDate)
	assert.Equal(t, "17/20", e.GPA)
	assert.Equal(t, []string{"Dean's list"}, e.Achievements)
}

func TestFromText_Skills(t *testing.T) {
	got, err := FromText(constants.SectionSkills, "Technical: Go; Rust, Kafka\nLanguages: English", sampleProfile())
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Rust", "Kafka"}, got.Skills.Technical)
	assert.Empty(t, got.Skills.Soft)
	assert.NotNil(t, got.Skills.Soft)
	assert.Equal(t, []string{"English"}, got.Skills.Languages)

	got, err = FromText(constants.SectionSkills, "just words", sampleProfile())
	require.NoError(t, err)
	assert.Equal(t, sampleProfile().Skills, got.Skills)
}

func TestFromText_Projects(t *testing.T) {
	text := "cv-extractor\nTechnologies: Go, Postgres\n\nside-quest\nA weekend toy\nURL: https://example.com/sq"
	got, rep, err := Reconcile(constants.SectionProjects, text, sampleProfile())
	require.NoError(t, err)
	require.Len(t, got.Projects, 2)

	assert.Equal(t, "Turns CVs into JSON", got.Projects[0].Description, "absent lines keep anchor values")
	assert.Equal(t, "https://example.com/cv", got.Projects[0].URL)
	assert.Equal(t, []string{"Go", "Postgres"}, got.Projects[0].Technologies)
	assert.Equal(t, entity.Project{Name: "side-quest", Description: "A weekend toy", Technologies: []string{}, URL: "https://example.com/sq"}, got.Projects[1])
	assert.Equal(t, Report{Blocks: 2, Anchored: 1, Added: 1}, rep)
}

func TestFromText_Certifications(t *testing.T) {
	text := "CKAD\nIssuer: CNCF\nDate: 2023"
	got, rep, err := Reconcile(constants.SectionCertifications, text, sampleProfile())
	require.NoError(t, err)
	assert.Equal(t, []entity.Certification{{Name: "CKAD", Issuer: "CNCF", Date: "2023"}}, got.Certifications)
	assert.Equal(t, Report{Blocks: 1, Added: 1, Dropped: 1}, rep)
}

func TestFromText_DoesNotMutateAnchor(t *testing.T) {
	anchor := sampleProfile()
	_, err := FromText(constants.SectionExperience, "Staff Engineer at Acme | Jan 2021 – Present\n• only one", anchor)
	require.NoError(t, err)
	assert.Equal(t, sampleProfile(), anchor)
}
