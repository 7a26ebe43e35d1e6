package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"guardchat/store"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

type loginOutcome int

const (
	loginOK loginOutcome = iota
	loginRejected
	loginSuspended
	loginFailed
)

// createAccount runs the signup flow shared by the socket action and the
// HTTP endpoint. The returned error payload is either a plain string or the
// list of unmet password rules; nil means the account was created.
func createAccount(username, password, email string) interface{} {
	if username == "" || password == "" {
		return "Username and password are required."
	}

	if corrections := passwordRequirements(password); len(corrections) > 0 {
		return corrections
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "Password hashing failed."
	}

	err = userStore.CreateUser(username, string(hashedPassword), email)
	if err == store.ErrUserExists {
		return "Username is already taken."
	}
	if err != nil {
		log.Println("createAccount: inserting user:", err)
		return "Could not create user."
	}
	return nil
}

// authenticateUser runs the credential and lockout checks shared by the
// socket action and the HTTP endpoint. On loginOK the returned token is a
// fresh auth token; on loginRejected/loginSuspended errMsg carries the
// reason for the caller's error payload.
func authenticateUser(username, password string, now time.Time) (outcome loginOutcome, token string, errMsg string) {
	if username == "" || password == "" {
		return loginRejected, "", "Username and password are required."
	}

	suspended, err := isLoginSuspended(username, now)
	if err != nil {
		log.Println("authenticateUser: suspension check:", err)
		return loginFailed, "", "Login failed."
	}
	if suspended {
		return loginSuspended, "", "Account temporarily suspended due to repeated failed logins. Try again later."
	}

	user, err := userStore.GetUser(username)
	if err == store.ErrUserNotFound {
		return loginRejected, "", "Invalid username or password."
	}
	if err != nil {
		log.Println("authenticateUser: loading user:", err)
		return loginFailed, "", "Login failed."
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		nowSuspended, remaining, err := recordLoginFailure(username, now)
		if err != nil {
			log.Println("authenticateUser: recording failure:", err)
			return loginFailed, "", "Login failed."
		}
		if nowSuspended {
			return loginSuspended, "", "Account temporarily suspended due to repeated failed logins. Try again later."
		}
		return loginRejected, "", loginFailureMessage(remaining)
	}

	token, err = generateAuthToken(username, now)
	if err != nil {
		log.Println("authenticateUser: generating token:", err)
		return loginFailed, "", "Failed to generate auth token."
	}
	return loginOK, token, ""
}

func loginFailureMessage(remaining int) string {
	if remaining == 1 {
		return "Invalid username or password. 1 attempt remaining before lockout."
	}
	return fmt.Sprintf("Invalid username or password. %d attempts remaining before lockout.", remaining)
}

func handleSignup(client *Client, conn *websocket.Conn, raw []byte) {
	var data SignupRequest
	if err := json.Unmarshal(raw, &data); err != nil {
		safeSend(client, conn, ErrorResponse{Error: "Invalid signup data."})
		return
	}

	if errPayload := createAccount(data.Username, data.Password, data.Email); errPayload != nil {
		safeSend(client, conn, ErrorResponse{Error: errPayload})
		return
	}
	safeSend(client, conn, SuccessResponse{Success: "User created. Please log in."})
}

// handleLogin returns true when the connection must be closed, which only
// happens on a lockout rejection.
func handleLogin(client *Client, conn *websocket.Conn, raw []byte) bool {
	var data LoginRequest
	if err := json.Unmarshal(raw, &data); err != nil {
		safeSend(client, conn, ErrorResponse{Error: "Invalid login data."})
		return false
	}

	outcome, token, errMsg := authenticateUser(data.Username, data.Password, time.Now().UTC())
	switch outcome {
	case loginSuspended:
		safeSend(client, conn, ErrorResponse{Error: errMsg})
		return true
	case loginRejected, loginFailed:
		safeSend(client, conn, ErrorResponse{Error: errMsg})
		return false
	}

	if err := userStore.SetOnline(data.Username, true); err != nil {
		log.Println("handleLogin: setting online flag:", err)
		safeSend(client, conn, ErrorResponse{Error: "Login failed."})
		return false
	}

	client.Username = data.Username
	client.IsAuthenticated = true
	registerPresence(data.Username, client)

	safeSend(client, conn, LoginResponse{
		Message: "Login successful.",
		User:    data.Username,
		Token:   token,
	})
	return false
}
