package services

import (
	"errors"

	"github.com/Gopher0727/ProNet/internal/models"
	"github.com/Gopher0727/ProNet/internal/repositories"
	"github.com/Gopher0727/ProNet/internal/utils"
	pkgutils "github.com/Gopher0727/ProNet/pkg/utils"
)

// AuthService 认证服务
type AuthService struct {
	userRepo *repositories.UserRepository
}

// NewAuthService 创建认证服务实例
func NewAuthService(userRepo *repositories.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest 更新资料请求
type UpdateProfileRequest struct {
	Nickname  string `json:"nickname"`
	Headline  string `json:"headline"`
	AvatarURL string `json:"avatar_url"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	Token   string   `json:"token"`
	User    *UserDTO `json:"user"`
	Message string   `json:"message"`
}

// UserDTO 用户数据传输对象
type UserDTO struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	Headline  string `json:"headline"`
	AvatarURL string `json:"avatar_url"`
}

func toUserDTO(user *models.User) *UserDTO {
	return &UserDTO{
		ID:        user.ID,
		Username:  user.UserName,
		Email:     user.Email,
		Nickname:  user.Nickname,
		Headline:  user.Headline,
		AvatarURL: user.AvatarURL,
	}
}

// Register 注册用户
func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	// 验证输入
	if !utils.ValidateUserName(req.Username) {
		return nil, errors.New("invalid username format")
	}
	if !utils.ValidateEmail(req.Email) {
		return nil, errors.New("invalid email format")
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, errors.New("password too short")
	}

	// 检查用户名和邮箱是否已存在
	if _, err := s.userRepo.GetByUserName(req.Username); err == nil {
		return nil, errors.New("username already exists")
	}
	if _, err := s.userRepo.GetByEmail(req.Email); err == nil {
		return nil, errors.New("email already exists")
	}

	// 密码哈希
	hashPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserName:     req.Username,
		Email:        req.Email,
		PasswordHash: hashPassword,
		Nickname:     req.Username,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	token, err := pkgutils.GenerateToken(user.ID, user.UserName, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token:   token,
		User:    toUserDTO(user),
		Message: "register success",
	}, nil
}

// Login 登录用户
func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUserName(req.Username)
	if err != nil {
		return nil, errors.New("username or password incorrect")
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, errors.New("username or password incorrect")
	}

	token, err := pkgutils.GenerateToken(user.ID, user.UserName, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token:   token,
		User:    toUserDTO(user),
		Message: "login success",
	}, nil
}

// GetProfile 获取个人资料
func (s *AuthService) GetProfile(userID uint) (*UserDTO, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return toUserDTO(user), nil
}

// UpdateProfile 更新个人资料（空字段保持不变）
func (s *AuthService) UpdateProfile(userID uint, req *UpdateProfileRequest) (*UserDTO, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if req.Nickname != "" {
		user.Nickname = req.Nickname
	}
	if req.Headline != "" {
		user.Headline = req.Headline
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return toUserDTO(user), nil
}
