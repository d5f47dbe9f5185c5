package storage

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// Scopes a service account needs to read and write the Realtime Database.
var firebaseScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/firebase.database",
}

// NewFirebaseClient returns an HTTP client that signs requests with the service account in
// credentialsFile. The result goes into FirebaseConfig.Client, with Secret left empty.
func NewFirebaseClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	client, _, err := htransport.NewClient(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(firebaseScopes...),
	)
	if err != nil {
		return nil, fmt.Errorf("firebase credentials %s: %w", credentialsFile, err)
	}
	return client, nil
}
