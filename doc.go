// Package auth provides credential based sign up and sign in: form
// validation, a bun backed credential store, bcrypt password hashing and
// JWT sessions carried in an HTTP only cookie.
//
// Sign in:
//   - CredentialsProvider.Authenticate looks the user up once by email and
//     compares the password. Failures are ErrUserNotFound, ErrMissingPassword
//     and ErrInvalidPassword internally, PublicMessage collapses them into a
//     single message for end users.
//
// Sessions:
//   - SessionManager mints tokens only for verified users. The JWTCallback
//     attaches the user on first issue and leaves the claims alone on
//     refresh, the SessionCallback shapes the client facing Session.
//   - Sign out revokes the token id until it expires (MemoryRevoker or the
//     redis backed sessionstore package).
//
// Registration:
//   - RegisterUserHandler validates the RegistrationInput again, hashes the
//     password and inserts the user. The unique email index is the only
//     duplicate guard.
package auth
