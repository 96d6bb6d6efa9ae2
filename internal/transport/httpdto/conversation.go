package httpdto

type OpenDirectRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type CreateGroupRequest struct {
	Name      string   `json:"name" binding:"required"`
	AvatarURL string   `json:"avatarUrl"`
	MemberIDs []string `json:"memberIds" binding:"required,min=1"`
}
