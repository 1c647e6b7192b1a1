// Package providers holds the pieces shared by the Zoho and Xero packages:
// the OAuth token endpoint client and the signed JSON API client.
package providers
