package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the forge hosting the Blender projects.
	DefaultBaseURL = "https://projects.blender.org"

	apiPathSegmentConstant                = "api"
	apiVersionPathSegmentConstant         = "v1"
	repositoriesPathSegmentConstant       = "repos"
	pullsPathSegmentConstant              = "pulls"
	repositoryNameSeparatorConstant       = "/"
	acceptHeaderNameConstant              = "Accept"
	acceptHeaderValueConstant             = "application/json"
	userAgentHeaderNameConstant           = "User-Agent"
	userAgentHeaderValueConstant          = "pr-tool"
	maximumResponseBytesConstant          = 8 << 20
	baseURLParseErrorTemplateConstant     = "invalid forge base url %q: %w"
	baseURLSchemeErrorTemplateConstant    = "forge base url %q must be absolute"
	invalidInputErrorTemplateConstant     = "%s: %s"
	unexpectedStatusErrorTemplateConstant = "HTTP Error %d: %s"
	responseDecodingErrorTemplateConstant = "unable to decode pull request payload: %w"
	requestBuildErrorTemplateConstant     = "unable to build request: %w"
	valueRequiredMessageConstant          = "value required"
	pathSeparatorForbiddenMessageConstant = "must not contain '/'"
	positiveNumberMessageConstant         = "must be a positive number"
	ownerFieldNameConstant                = "owner"
	repositoryFieldNameConstant           = "repository"
	numberFieldNameConstant               = "number"
	fullNameFieldNameConstant             = "full_name"
	fetchStartedMessageConstant           = "fetching pull request metadata"
	fetchCompletedMessageConstant         = "fetched pull request metadata"
	fetchFailedMessageConstant            = "pull request metadata request failed"
	logFieldEndpointConstant              = "endpoint"
	logFieldStatusCodeConstant            = "status_code"
	logFieldStateConstant                 = "state"
	logFieldMergedConstant                = "merged"
)

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ClientConfiguration configures a forge Client.
type ClientConfiguration struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient HTTPClient
	Logger     *zap.Logger
}

// Client reads pull request metadata from a Gitea-compatible REST API.
type Client struct {
	baseURL    *url.URL
	httpClient HTTPClient
	logger     *zap.Logger
}

// InvalidInputError reports a request parameter that cannot be placed in a URL.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// UnexpectedStatusError reports a response outside the 2xx range.
type UnexpectedStatusError struct {
	Endpoint   string
	StatusCode int
}

// Error mirrors the conventional "HTTP Error <code>: <reason>" wording.
func (statusError UnexpectedStatusError) Error() string {
	return fmt.Sprintf(unexpectedStatusErrorTemplateConstant, statusError.StatusCode, http.StatusText(statusError.StatusCode))
}

// FetchError wraps every failure to obtain pull request metadata.
type FetchError struct {
	Endpoint string
	Cause    error
}

// Error returns the description of the underlying cause.
func (fetchError FetchError) Error() string {
	if fetchError.Cause == nil {
		return fetchFailedMessageConstant
	}
	return fetchError.Cause.Error()
}

// Unwrap exposes the underlying cause.
func (fetchError FetchError) Unwrap() error {
	return fetchError.Cause
}

// NewClient validates the configuration and constructs a Client.
func NewClient(configuration ClientConfiguration) (*Client, error) {
	rawBaseURL := strings.TrimSpace(configuration.BaseURL)
	if len(rawBaseURL) == 0 {
		rawBaseURL = DefaultBaseURL
	}

	parsedBaseURL, parseError := url.Parse(rawBaseURL)
	if parseError != nil {
		return nil, fmt.Errorf(baseURLParseErrorTemplateConstant, rawBaseURL, parseError)
	}
	if !parsedBaseURL.IsAbs() || len(parsedBaseURL.Host) == 0 {
		return nil, fmt.Errorf(baseURLSchemeErrorTemplateConstant, rawBaseURL)
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: configuration.Timeout}
	}

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{baseURL: parsedBaseURL, httpClient: httpClient, logger: logger}, nil
}

// PullRequestEndpoint builds {base}/api/v1/repos/{owner}/{repository}/pulls/{number}.
func (client *Client) PullRequestEndpoint(owner string, repository string, number int) (string, error) {
	trimmedOwner, ownerError := validatePathSegment(ownerFieldNameConstant, owner)
	if ownerError != nil {
		return "", ownerError
	}
	trimmedRepository, repositoryError := validatePathSegment(repositoryFieldNameConstant, repository)
	if repositoryError != nil {
		return "", repositoryError
	}
	if number <= 0 {
		return "", InvalidInputError{FieldName: numberFieldNameConstant, Message: positiveNumberMessageConstant}
	}

	endpoint := client.baseURL.JoinPath(
		apiPathSegmentConstant,
		apiVersionPathSegmentConstant,
		repositoriesPathSegmentConstant,
		trimmedOwner,
		trimmedRepository,
		pullsPathSegmentConstant,
		strconv.Itoa(number),
	)
	return endpoint.String(), nil
}

// RepositoryURL builds the web/clone URL {base}/{owner}/{name} for a repository full name.
func (client *Client) RepositoryURL(fullName string) (string, error) {
	trimmedFullName := strings.Trim(strings.TrimSpace(fullName), repositoryNameSeparatorConstant)
	ownerName, repositoryName, separatorFound := strings.Cut(trimmedFullName, repositoryNameSeparatorConstant)
	if !separatorFound || len(strings.TrimSpace(ownerName)) == 0 || len(strings.TrimSpace(repositoryName)) == 0 || strings.Contains(repositoryName, repositoryNameSeparatorConstant) {
		return "", InvalidInputError{FieldName: fullNameFieldNameConstant, Message: valueRequiredMessageConstant}
	}
	return client.baseURL.JoinPath(ownerName, repositoryName).String(), nil
}

// FetchPullRequest retrieves and decodes pull request metadata. Any transport
// failure, non-2xx status, or malformed payload is returned as FetchError.
func (client *Client) FetchPullRequest(executionContext context.Context, owner string, repository string, number int) (PullRequest, error) {
	endpoint, endpointError := client.PullRequestEndpoint(owner, repository, number)
	if endpointError != nil {
		return PullRequest{}, endpointError
	}

	if executionContext == nil {
		executionContext = context.Background()
	}

	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, endpoint, nil)
	if requestError != nil {
		return PullRequest{}, FetchError{Endpoint: endpoint, Cause: fmt.Errorf(requestBuildErrorTemplateConstant, requestError)}
	}
	request.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	request.Header.Set(userAgentHeaderNameConstant, userAgentHeaderValueConstant)

	client.logger.Debug(fetchStartedMessageConstant, zap.String(logFieldEndpointConstant, endpoint))

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		client.logger.Warn(fetchFailedMessageConstant, zap.String(logFieldEndpointConstant, endpoint), zap.Error(responseError))
		return PullRequest{}, FetchError{Endpoint: endpoint, Cause: responseError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		statusError := UnexpectedStatusError{Endpoint: endpoint, StatusCode: response.StatusCode}
		client.logger.Warn(fetchFailedMessageConstant, zap.String(logFieldEndpointConstant, endpoint), zap.Int(logFieldStatusCodeConstant, response.StatusCode))
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maximumResponseBytesConstant))
		return PullRequest{}, FetchError{Endpoint: endpoint, Cause: statusError}
	}

	var pullRequest PullRequest
	decodeError := json.NewDecoder(io.LimitReader(response.Body, maximumResponseBytesConstant)).Decode(&pullRequest)
	if decodeError != nil {
		return PullRequest{}, FetchError{Endpoint: endpoint, Cause: fmt.Errorf(responseDecodingErrorTemplateConstant, decodeError)}
	}
	if pullRequest.Number == 0 {
		pullRequest.Number = number
	}

	client.logger.Info(
		fetchCompletedMessageConstant,
		zap.String(logFieldEndpointConstant, endpoint),
		zap.Int(logFieldStatusCodeConstant, response.StatusCode),
		zap.String(logFieldStateConstant, string(pullRequest.State)),
		zap.Bool(logFieldMergedConstant, pullRequest.Merged),
	)

	return pullRequest, nil
}

// IsFetchError reports whether the error chain contains a FetchError.
func IsFetchError(candidate error) bool {
	var fetchError FetchError
	return errors.As(candidate, &fetchError)
}

func validatePathSegment(fieldName string, value string) (string, error) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return "", InvalidInputError{FieldName: fieldName, Message: valueRequiredMessageConstant}
	}
	if strings.Contains(trimmedValue, repositoryNameSeparatorConstant) {
		return "", InvalidInputError{FieldName: fieldName, Message: pathSeparatorForbiddenMessageConstant}
	}
	return trimmedValue, nil
}
