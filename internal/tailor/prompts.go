package tailor

import "fmt"

// DefaultCVTemplate is used when a request does not supply its own CV text.
const DefaultCVTemplate = `John Doe
Full Stack Developer
Email: john@example.com | Phone: +1234567890

SUMMARY
Experienced developer with 2 years in React, Node.js, Python...

SKILLS
- Languages: JavaScript, Python, TypeScript
- Frontend: React, Next.js, Tailwind
- Backend: Node.js, Express, FastAPI
- Database: PostgreSQL, MongoDB

EXPERIENCE
Software Engineer - ABC Corp (2022-2024)
- Built full-stack applications using React and Node.js
- Improved application performance by 40%
- Led team of 3 developers

EDUCATION
B.Tech Computer Science - XYZ University (2020-2022)`

const cvSystemPrompt = "You are a professional CV writer who tailors resumes to job descriptions while maintaining formatting."

const coverLetterSystemPrompt = "You are a professional cover letter writer who creates compelling, personalized cover letters."

// CVPrompt builds the system and user prompts for CV tailoring.
func CVPrompt(cvTemplate, jobTitle, company, description string) (system, user string) {
	if description == "" {
		description = "No description provided"
	}
	user = fmt.Sprintf(`You are a professional CV writer. Tailor this CV to match the job description below.

IMPORTANT RULES:
1. Keep the EXACT same formatting and structure
2. Keep the same section headers (SUMMARY, SKILLS, EXPERIENCE, EDUCATION)
3. Only modify the content to highlight relevant skills for this specific job
4. Keep it concise - same length as original
5. Make it ATS-friendly
6. Return ONLY the tailored CV, no explanations

Original CV:
%s

Job Title: %s
Company: %s

Job Description:
%s

Tailored CV:`, cvTemplate, jobTitle, company, description)
	return cvSystemPrompt, user
}

// CoverLetterPrompt builds the system and user prompts for cover letter
// generation.
func CoverLetterPrompt(cvTemplate, jobTitle, company, description string) (system, user string) {
	if description == "" {
		description = "No description provided"
	}
	user = fmt.Sprintf(`Write a professional cover letter for this job application.

IMPORTANT RULES:
1. Professional and compelling tone
2. Highlight relevant skills from the CV template
3. Show enthusiasm for the role and company
4. Keep it concise (250-300 words)
5. Include proper greeting and closing
6. Return ONLY the cover letter, no explanations

CV Information:
%s

Job Title: %s
Company: %s

Job Description:
%s

Cover Letter:`, cvTemplate, jobTitle, company, description)
	return coverLetterSystemPrompt, user
}
