package po

import "github.com/google/uuid"

// LessonChain 描述 lesson → module → course 的归属链路，由课程服务维护，本服务只读。
type LessonChain struct {
	LessonID     uuid.UUID
	ModuleID     uuid.UUID
	CourseID     uuid.UUID
	InstructorID uuid.UUID
}
