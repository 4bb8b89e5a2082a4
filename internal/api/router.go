package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/borrow"
	"github.com/erazemk/knjiznica/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, borrows *borrow.Service) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	booksHandler := &BooksHandler{DB: db}
	borrowsHandler := &BorrowsHandler{DB: db, Borrows: borrows}
	settingsHandler := &SettingsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireLibrarian := RequireRole(model.RoleLibrarian)
	loginLimiter := newClientLimiter(loginInterval, loginBurst)

	// Public: login.
	mux.Handle("POST /api/auth/login", loginLimiter.RateLimit(http.HandlerFunc(authHandler.Login)))

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Books: read (all roles), write (librarian+).
	mux.Handle("GET /api/books", authMW(http.HandlerFunc(booksHandler.List)))
	mux.Handle("POST /api/books", authMW(requireLibrarian(http.HandlerFunc(booksHandler.Create))))
	mux.Handle("GET /api/books/{id}", authMW(http.HandlerFunc(booksHandler.Get)))
	mux.Handle("PUT /api/books/{id}", authMW(requireLibrarian(http.HandlerFunc(booksHandler.Update))))
	mux.Handle("DELETE /api/books/{id}", authMW(requireLibrarian(http.HandlerFunc(booksHandler.Delete))))
	mux.Handle("PUT /api/books/{id}/cover", authMW(requireLibrarian(http.HandlerFunc(booksHandler.UploadCover))))
	mux.Handle("GET /api/books/{id}/cover", authMW(http.HandlerFunc(booksHandler.GetCover)))

	// Borrowing (all roles; handlers restrict borrowers to their own records).
	mux.Handle("POST /api/borrow", authMW(http.HandlerFunc(borrowsHandler.Submit)))
	mux.Handle("GET /api/borrows", authMW(http.HandlerFunc(borrowsHandler.ListForStudent)))
	mux.Handle("POST /api/borrows/{borrowId}/cancel", authMW(http.HandlerFunc(borrowsHandler.Cancel)))

	// Librarian review.
	mux.Handle("GET /api/librarian/borrows", authMW(requireLibrarian(http.HandlerFunc(borrowsHandler.ListAll))))
	mux.Handle("PUT /api/librarian/borrows/{borrowId}/status", authMW(requireLibrarian(http.HandlerFunc(borrowsHandler.SetStatus))))
	mux.Handle("POST /api/librarian/borrows/{borrowId}/return", authMW(requireLibrarian(http.HandlerFunc(borrowsHandler.Return))))
	mux.Handle("DELETE /api/admin/borrows/{borrowId}", authMW(requireAdmin(http.HandlerFunc(borrowsHandler.Delete))))

	// Settings: read (all), write (admin).
	mux.Handle("GET /api/settings/loan-policy", authMW(http.HandlerFunc(settingsHandler.GetLoanPolicy)))
	mux.Handle("PUT /api/settings/loan-policy", authMW(requireAdmin(http.HandlerFunc(settingsHandler.SetLoanPolicy))))

	return mux
}
