package entity

// ExtractedProfile is the assembled result of all extraction phases.
type ExtractedProfile struct {
	PersonalInfo   PersonalInfo    `json:"personalInfo"`
	Experience     []Experience    `json:"experience"`
	Education      []Education     `json:"education"`
	Skills         Skills          `json:"skills"`
	Projects       []Project       `json:"projects"`
	Certifications []Certification `json:"certifications"`
	Awards         []string        `json:"awards"`
	Publications   []string        `json:"publications"`
	Volunteer      []string        `json:"volunteer"`
}

type PersonalInfo struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	CurrentTitle string `json:"currentTitle"`
	Summary      string `json:"summary"`
	AboutMe      string `json:"aboutMe"`
}

type Experience struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements"`
}

type Education struct {
	Degree         string   `json:"degree"`
	Institution    string   `json:"institution"`
	Location       string   `json:"location"`
	GraduationDate string   `json:"graduationDate"`
	GPA            string   `json:"gpa"`
	Achievements   []string `json:"achievements"`
}

type Skills struct {
	Technical []string `json:"technical"`
	Soft      []string `json:"soft"`
	Languages []string `json:"languages"`
}

type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          string   `json:"url"`
}

type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Date   string `json:"date"`
	URL    string `json:"url"`
}

// Normalize replaces nil collections with empty ones so the profile
// serialises with [] instead of null.
func (p *ExtractedProfile) Normalize() *ExtractedProfile {
	if p.Experience == nil {
		p.Experience = []Experience{}
	}
	for i := range p.Experience {
		if p.Experience[i].Achievements == nil {
			p.Experience[i].Achievements = []string{}
		}
	}
	if p.Education == nil {
		p.Education = []Education{}
	}
	for i := range p.Education {
		if p.Education[i].Achievements == nil {
			p.Education[i].Achievements = []string{}
		}
	}
	p.Skills.normalize()
	if p.Projects == nil {
		p.Projects = []Project{}
	}
	for i := range p.Projects {
		if p.Projects[i].Technologies == nil {
			p.Projects[i].Technologies = []string{}
		}
	}
	if p.Certifications == nil {
		p.Certifications = []Certification{}
	}
	if p.Awards == nil {
		p.Awards = []string{}
	}
	if p.Publications == nil {
		p.Publications = []string{}
	}
	if p.Volunteer == nil {
		p.Volunteer = []string{}
	}
	return p
}

func (s *Skills) normalize() {
	if s.Technical == nil {
		s.Technical = []string{}
	}
	if s.Soft == nil {
		s.Soft = []string{}
	}
	if s.Languages == nil {
		s.Languages = []string{}
	}
}

// Clone returns a deep copy.
func (p *ExtractedProfile) Clone() *ExtractedProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Experience = make([]Experience, len(p.Experience))
	for i, e := range p.Experience {
		e.Achievements = append([]string(nil), e.Achievements...)
		out.Experience[i] = e
	}
	out.Education = make([]Education, len(p.Education))
	for i, e := range p.Education {
		e.Achievements = append([]string(nil), e.Achievements...)
		out.Education[i] = e
	}
	out.Skills = Skills{
		Technical: append([]string(nil), p.Skills.Technical...),
		Soft:      append([]string(nil), p.Skills.Soft...),
		Languages: append([]string(nil), p.Skills.Languages...),
	}
	out.Projects = make([]Project, len(p.Projects))
	for i, pr := range p.Projects {
		pr.Technologies = append([]string(nil), pr.Technologies...)
		out.Projects[i] = pr
	}
	out.Certifications = append([]Certification(nil), p.Certifications...)
	out.Awards = append([]string(nil), p.Awards...)
	out.Publications = append([]string(nil), p.Publications...)
	out.Volunteer = append([]string(nil), p.Volunteer...)
	return out.Normalize()
}
