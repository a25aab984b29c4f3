package constants

const (
	// AppName 服务名，用于追踪和日志
	AppName = "resume-search"
	// AppVersion 对外暴露的版本号
	AppVersion = "1.0.0"

	// MessageProcessing 上传受理提示
	MessageProcessing = "Your resume is being processed. This may take a few moments."
	// MessageNoMatch 检索无结果提示
	MessageNoMatch = "No suitable matches found for your preferences"
	// MessageWelcome 根路由欢迎语
	MessageWelcome = "Welcome to the Resume Search API"

	// ResumeObjectPrefix MinIO 中原始简历的对象前缀
	ResumeObjectPrefix = "resumes/"
)
