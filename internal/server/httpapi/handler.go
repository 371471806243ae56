package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/expensebook/expensebook/internal/server/models"
	"github.com/expensebook/expensebook/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullname"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type createFriendRequest struct {
	FullName  string     `json:"fullname"`
	ContactNo flexString `json:"contactNo"`
	Amount    float64    `json:"amount"`
}

type loginResponse struct {
	User         *models.UserView `json:"user"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

// flexString accepts a JSON string or number. Phone numbers arrive as both.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (s *Server) health(c *fiber.Ctx) error {
	if err := s.deps.DB.PingContext(c.UserContext()); err != nil {
		s.logger.Error(c.UserContext(), "health check failed", "error", err)
		return respond(c, fiber.StatusServiceUnavailable, nil, "database unavailable")
	}
	return respond(c, fiber.StatusOK, fiber.Map{"status": "ok"}, "OK")
}

func (s *Server) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := s.deps.Users.Register(c.UserContext(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return err
	}

	s.logger.Info(c.UserContext(), "Registered", "username", user.Username)
	return respond(c, fiber.StatusCreated, user, "User registered successfully")
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := s.deps.Users.Login(c.UserContext(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		// unknown users look exactly like a wrong password
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: invalid user credentials", common.ErrorUnauthorized)
		}
		return err
	}

	s.setSessionCookies(c, res.Tokens)
	return respond(c, fiber.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (s *Server) logout(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	if err := s.deps.Users.Logout(c.UserContext(), id.UserID); err != nil {
		return err
	}

	s.clearSessionCookies(c)
	return respond(c, fiber.StatusOK, fiber.Map{}, "User logged out successfully")
}

func (s *Server) refreshToken(c *fiber.Ctx) error {
	token := c.Cookies(common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		token = req.RefreshToken
	}

	pair, err := s.deps.Users.RefreshAccessToken(c.UserContext(), token)
	if err != nil {
		return err
	}

	s.setSessionCookies(c, *pair)
	return respond(c, fiber.StatusOK, pair, "Access token refreshed")
}

func (s *Server) changePassword(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := s.deps.Users.ChangePassword(c.UserContext(), id.UserID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Password changed successfully")
}

func (s *Server) updateDetails(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	var upd models.ProfileUpdate
	if err := parseBody(c, &upd); err != nil {
		return err
	}

	user, err := s.deps.Users.UpdateProfile(c.UserContext(), id.UserID, upd)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, user, "User updated successfully")
}

func (s *Server) currentUser(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	user, err := s.deps.Users.CurrentUser(c.UserContext(), id.UserID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, user, "Current user fetched successfully")
}

func (s *Server) createFriend(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	var req createFriendRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	friend, err := s.deps.Friends.CreateFriend(c.UserContext(), id.UserID, services.CreateFriendInput{
		FullName:  req.FullName,
		ContactNo: string(req.ContactNo),
		Amount:    req.Amount,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"friend": friend}, "Friend created successfully")
}

func (s *Server) listFriends(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	friends, err := s.deps.Friends.ListFriends(c.UserContext(), id.UserID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"friends": friends}, "Friends fetched successfully")
}

func (s *Server) findFriends(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(c.Params("friendname"))

	friends, err := s.deps.Friends.FindFriends(c.UserContext(), id.UserID, name)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"friends": friends}, "Friend fetched successfully")
}

func (s *Server) avatarUploadURL(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	upload, err := s.deps.Avatars.IssueUploadURL(c.UserContext(), id.UserID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, upload, "Upload URL issued")
}

func (s *Server) avatarURL(c *fiber.Ctx) error {
	id, err := identityFrom(c)
	if err != nil {
		return err
	}

	url, err := s.deps.Avatars.AvatarURL(c.UserContext(), id.UserID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"url": url}, "Avatar URL issued")
}
