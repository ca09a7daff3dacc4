// Package shell is the presentation layer: a menu-driven loop over the
// registries and the ledger. It is the only place that renders errors
// to the user; the layers below just return them.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"libris/internal/books"
	"libris/internal/checkouts"
	"libris/internal/models"
	"libris/internal/users"
)

const dateFormat = "2006-01-02"

// Shell reads line input and dispatches to the registries and ledger.
type Shell struct {
	scanner *bufio.Scanner
	out     io.Writer
	books   *books.Registry
	users   *users.Registry
	ledger  *checkouts.Ledger
}

// New returns a shell reading from in and writing to out.
func New(in io.Reader, out io.Writer, bookRegistry *books.Registry, userRegistry *users.Registry, ledger *checkouts.Ledger) *Shell {
	return &Shell{
		scanner: bufio.NewScanner(in),
		out:     out,
		books:   bookRegistry,
		users:   userRegistry,
		ledger:  ledger,
	}
}

// Run drives the main menu until the user exits, input ends, or the
// context is canceled.
func (s *Shell) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		color.Cyan("\nLibrary Management System")
		fmt.Fprintln(s.out, "1. Manage Books")
		fmt.Fprintln(s.out, "2. Manage Users")
		fmt.Fprintln(s.out, "3. Checkouts")
		fmt.Fprintln(s.out, "4. Exit")

		choice, ok := s.prompt("Enter choice: ")
		if !ok {
			return nil
		}

		switch choice {
		case "1":
			if done := s.bookMenu(ctx); done {
				return nil
			}
		case "2":
			if done := s.userMenu(ctx); done {
				return nil
			}
		case "3":
			if done := s.checkoutMenu(ctx); done {
				return nil
			}
		case "4":
			color.Yellow("Exiting. Goodbye!")
			return nil
		default:
			color.Red("Invalid choice, please try again.")
		}
	}
}

// bookMenu handles book management; it returns true when the user
// chose to exit the whole program.
func (s *Shell) bookMenu(ctx context.Context) bool {
	for {
		color.Cyan("\nManage Books")
		fmt.Fprintln(s.out, "1. Add Book")
		fmt.Fprintln(s.out, "2. Update Book")
		fmt.Fprintln(s.out, "3. Delete Book")
		fmt.Fprintln(s.out, "4. List Books")
		fmt.Fprintln(s.out, "5. Search Book")
		fmt.Fprintln(s.out, "6. Return to Main Menu")
		fmt.Fprintln(s.out, "7. Exit")

		choice, ok := s.prompt("Enter choice: ")
		if !ok {
			return true
		}

		switch choice {
		case "1":
			s.addBook(ctx)
		case "2":
			s.updateBook(ctx)
		case "3":
			s.deleteBook(ctx)
		case "4":
			s.listBooks(ctx)
		case "5":
			s.searchBooks(ctx)
		case "6":
			return false
		case "7":
			color.Yellow("Exiting. Goodbye!")
			return true
		default:
			color.Red("Invalid choice, please try again.")
		}
	}
}

func (s *Shell) userMenu(ctx context.Context) bool {
	for {
		color.Cyan("\nManage Users")
		fmt.Fprintln(s.out, "1. Add User")
		fmt.Fprintln(s.out, "2. Update User")
		fmt.Fprintln(s.out, "3. Delete User")
		fmt.Fprintln(s.out, "4. List Users")
		fmt.Fprintln(s.out, "5. Search User")
		fmt.Fprintln(s.out, "6. Return to Main Menu")
		fmt.Fprintln(s.out, "7. Exit")

		choice, ok := s.prompt("Enter choice: ")
		if !ok {
			return true
		}

		switch choice {
		case "1":
			s.addUser(ctx)
		case "2":
			s.updateUser(ctx)
		case "3":
			s.deleteUser(ctx)
		case "4":
			s.listUsers(ctx)
		case "5":
			s.searchUsers(ctx)
		case "6":
			return false
		case "7":
			color.Yellow("Exiting. Goodbye!")
			return true
		default:
			color.Red("Invalid choice, please try again.")
		}
	}
}

func (s *Shell) checkoutMenu(ctx context.Context) bool {
	for {
		color.Cyan("\nCheckouts")
		fmt.Fprintln(s.out, "1. Checkout Book")
		fmt.Fprintln(s.out, "2. Return Book")
		fmt.Fprintln(s.out, "3. List Active Checkouts")
		fmt.Fprintln(s.out, "4. History by User")
		fmt.Fprintln(s.out, "5. History by Book")
		fmt.Fprintln(s.out, "6. Return to Main Menu")
		fmt.Fprintln(s.out, "7. Exit")

		choice, ok := s.prompt("Enter choice: ")
		if !ok {
			return true
		}

		switch choice {
		case "1":
			s.checkoutBook(ctx)
		case "2":
			s.returnBook(ctx)
		case "3":
			s.listActive(ctx)
		case "4":
			s.historyForUser(ctx)
		case "5":
			s.historyForBook(ctx)
		case "6":
			return false
		case "7":
			color.Yellow("Exiting. Goodbye!")
			return true
		default:
			color.Red("Invalid choice, please try again.")
		}
	}
}

func (s *Shell) addBook(ctx context.Context) {
	title, ok := s.prompt("Enter title: ")
	if !ok {
		return
	}
	author, ok := s.prompt("Enter author: ")
	if !ok {
		return
	}
	isbn, ok := s.prompt("Enter ISBN: ")
	if !ok {
		return
	}

	book, err := s.books.Add(ctx, models.Book{ISBN: isbn, Title: title, Author: author})
	if err != nil {
		s.renderError(err)
		return
	}
	color.Green("Book added: %s", formatBook(book))
}

func (s *Shell) updateBook(ctx context.Context) {
	isbn, ok := s.prompt("Enter ISBN of the book to update: ")
	if !ok {
		return
	}
	title, ok := s.prompt("Enter new title (press enter to keep current): ")
	if !ok {
		return
	}
	author, ok := s.prompt("Enter new author (press enter to keep current): ")
	if !ok {
		return
	}

	book, err := s.books.Update(ctx, isbn, title, author)
	if err != nil {
		s.renderError(err)
		return
	}
	color.Green("Book updated: %s", formatBook(book))
}

func (s *Shell) deleteBook(ctx context.Context) {
	isbn, ok := s.prompt("Enter ISBN of the book to delete: ")
	if !ok {
		return
	}

	if err := s.books.Delete(ctx, isbn); err != nil {
		s.renderError(err)
		return
	}
	color.Green("Book deleted successfully.")
}

func (s *Shell) listBooks(ctx context.Context) {
	all, err := s.books.List(ctx)
	if err != nil {
		s.renderError(err)
		return
	}
	if len(all) == 0 {
		color.Yellow("No books in the library.")
		return
	}
	for _, book := range all {
		status := "Available"
		if !book.Available {
			status = "Checked Out"
		}
		fmt.Fprintf(s.out, "%s - Status: %s\n", formatBook(book), status)
	}
}

func (s *Shell) searchBooks(ctx context.Context) {
	keyword, ok := s.prompt("Enter keyword to search: ")
	if !ok {
		return
	}

	matches, err := s.books.Search(ctx, keyword)
	if err != nil {
		s.renderError(err)
		return
	}
	if len(matches) == 0 {
		color.Yellow("No books found.")
		return
	}
	for _, book := range matches {
		fmt.Fprintln(s.out, formatBook(book))
	}
}

func (s *Shell) addUser(ctx context.Context) {
	name, ok := s.prompt("Enter user name: ")
	if !ok {
		return
	}
	email, ok := s.prompt("Enter email (optional): ")
	if !ok {
		return
	}

	usr, err := s.users.Add(ctx, models.User{Name: name, Email: email})
	if err != nil {
		s.renderError(err)
		return
	}
	color.Green("User added: %s", formatUser(usr))
}

func (s *Shell) updateUser(ctx context.Context) {
	userID, ok := s.prompt("Enter ID of the user to update: ")
	if !ok {
		return
	}
	name, ok := s.prompt("Enter new name (press enter to keep current): ")
	if !ok {
		return
	}
	email, ok := s.prompt("Enter new email (press enter to keep current): ")
	if !ok {
		return
	}

	usr, err := s.users.Update(ctx, userID, name, email)
	if err != nil {
		s.renderError(err)
		return
	}
	color.Green("User updated: %s", formatUser(usr))
}

func (s *Shell) deleteUser(ctx context.Context) {
	userID, ok := s.prompt("Enter ID of the user to delete: ")
	if !ok {
		return
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		s.renderError(err)
		return
	}
	color.Green("User deleted successfully.")
}

func (s *Shell) listUsers(ctx context.Context) {
	all, err := s.users.List(ctx)
	if err != nil {
		s.renderError(err)
		return
	}
	if len(all) == 0 {
		color.Yellow("No users registered.")
		return
	}
	for _, usr := range all {
		fmt.Fprintln(s.out, formatUser(usr))
	}
}

func (s *Shell) searchUsers(ctx context.Context) {
	keyword, ok := s.prompt("Enter name or ID to search: ")
	if !ok {
		return
	}

	matches, err := s.users.Search(ctx, keyword)
	if err != nil {
		s.renderError(err)
		return
	}
	if len(matches) == 0 {
		color.Yellow("No users found.")
		return
	}
	for _, usr := range matches {
		fmt.Fprintln(s.out, formatUser(usr))
	}
}

func (s *Shell) checkoutBook(ctx context.Context) {
	userID, ok := s.prompt("Enter user ID: ")
	if !ok {
		return
	}
	isbn, ok := s.prompt("Enter ISBN of the book to checkout: ")
	if !ok {
		return
	}

	record, err := s.ledger.Checkout(ctx, isbn, userID)
	if err != nil {
		s.renderError(err)
		return
	}
	color.Green("Checked out %q to user %s, due %s",
		record.BookISBN, record.UserID, record.DueAt.Format(dateFormat))
}

func (s *Shell) returnBook(ctx context.Context) {
	isbn, ok := s.prompt("Enter ISBN of the book to return: ")
	if !ok {
		return
	}

	record, err := s.ledger.Return(ctx, isbn)
	if err != nil {
		s.renderError(err)
		return
	}
	color.Green("Returned %q (was due %s)", record.BookISBN, record.DueAt.Format(dateFormat))
}

func (s *Shell) listActive(ctx context.Context) {
	records, err := s.ledger.ListActive(ctx)
	if err != nil {
		s.renderError(err)
		return
	}
	if len(records) == 0 {
		color.Yellow("No active checkouts.")
		return
	}
	for _, record := range records {
		fmt.Fprintln(s.out, formatCheckout(record))
	}
}

func (s *Shell) historyForUser(ctx context.Context) {
	userID, ok := s.prompt("Enter user ID: ")
	if !ok {
		return
	}

	records, err := s.ledger.HistoryForUser(ctx, userID)
	if err != nil {
		s.renderError(err)
		return
	}
	if len(records) == 0 {
		color.Yellow("No checkouts for this user.")
		return
	}
	for _, record := range records {
		fmt.Fprintln(s.out, formatCheckout(record))
	}
}

func (s *Shell) historyForBook(ctx context.Context) {
	isbn, ok := s.prompt("Enter ISBN: ")
	if !ok {
		return
	}

	records, err := s.ledger.HistoryForBook(ctx, isbn)
	if err != nil {
		s.renderError(err)
		return
	}
	if len(records) == 0 {
		color.Yellow("No checkouts for this book.")
		return
	}
	for _, record := range records {
		fmt.Fprintln(s.out, formatCheckout(record))
	}
}

// prompt prints the label and reads one trimmed line. ok is false when
// input has ended.
func (s *Shell) prompt(label string) (value string, ok bool) {
	fmt.Fprint(s.out, label)
	if !s.scanner.Scan() {
		return "", false
	}

	return strings.TrimSpace(s.scanner.Text()), true
}

func (s *Shell) renderError(err error) {
	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrDuplicateID),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrValidation):
		color.Red("Error: %v", err)
	default:
		color.Red("Unexpected error: %v", err)
	}
}

func formatBook(book models.Book) string {
	return fmt.Sprintf("%s by %s (ISBN: %s)", book.Title, book.Author, book.ISBN)
}

func formatUser(usr models.User) string {
	if usr.Email == "" {
		return fmt.Sprintf("%s (ID: %s)", usr.Name, usr.ID)
	}

	return fmt.Sprintf("%s <%s> (ID: %s)", usr.Name, usr.Email, usr.ID)
}

func formatCheckout(record models.Checkout) string {
	status := fmt.Sprintf("due %s", record.DueAt.Format(dateFormat))
	if !record.Active() {
		status = fmt.Sprintf("returned %s", record.ReturnedAt.Format(dateFormat))
	}

	return fmt.Sprintf("%s -> user %s (checked out %s, %s)",
		record.BookISBN, record.UserID, record.CheckedOutAt.Format(dateFormat), status)
}
