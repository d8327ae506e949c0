package game

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	Tag     = "GameService"
	APIRoot = "/v1"
)

//go:embed docs/openapi.yaml
var openAPISpecs string

const openAPITemplate = `%[1]s/secrets:
  get:
    tags:
      - %[2]s
    summary: List secret words
    description: Returns the secret words of all stored items
    responses:
      '200':
        description: Secret words retrieved successfully
        content:
          application/json:
            schema:
              type: object
              properties:
                secrets:
                  type: array
                  items:
                    type: string
              required:
                - secrets
      '503':
        description: Item store unavailable
%[1]s/items/{itemId}:
  get:
    tags:
      - %[2]s
    summary: Describe item
    description: Returns how the image of an item is stored, without its secret word
    parameters:
      - name: itemId
        in: path
        required: true
        schema:
          type: string
        description: Opaque item identifier
    responses:
      '200':
        description: Item found
        content:
          application/json:
            schema:
              type: object
              properties:
                id:
                  type: string
                kind:
                  type: string
                  enum:
                    - inline
                    - locator
                content_type:
                  type: string
                size:
                  type: integer
                url:
                  type: string
              required:
                - id
                - kind
      '404':
        description: Item not found
      '503':
        description: Item store unavailable
%[1]s/events:
  get:
    tags:
      - %[2]s
    summary: Upload events
    description: Websocket stream of JSON item_added events
    responses:
      '101':
        description: Switching to the websocket protocol
/image:
  get:
    tags:
      - %[2]s
    summary: Item image
    description: Returns inline image bytes or redirects to the stored image
    parameters:
      - name: item_id
        in: query
        required: true
        schema:
          type: string
    responses:
      '200':
        description: Image bytes
      '302':
        description: Redirect to the image locator
      '400':
        description: Missing item_id
      '404':
        description: Item not found
      '503':
        description: Item store unavailable
/upload_image:
  post:
    tags:
      - %[2]s
    summary: Upload image
    description: Stores an image with its secret word and redirects to the upload page
    requestBody:
      required: true
      content:
        multipart/form-data:
          schema:
            type: object
            properties:
              secretWord:
                type: string
                description: The word to guess
              image:
                type: string
                format: binary
                description: The image file
            required:
              - secretWord
              - image
    responses:
      '303':
        description: Redirect to the upload page
      '400':
        description: Bad request - malformed form
      '503':
        description: Item store unavailable
/make_a_guess:
  post:
    tags:
      - %[2]s
    summary: Guess the secret word
    requestBody:
      required: true
      content:
        application/x-www-form-urlencoded:
          schema:
            type: object
            properties:
              guessed_word:
                type: string
            required:
              - guessed_word
    responses:
      '303':
        description: Redirect home on a right guess, back to the game otherwise`

// GetOpenAPISpec returns the paths served by the game, with the JSON API
// mounted under rootPath.
func GetOpenAPISpec(rootPath, tag string) string {
	if rootPath == "" || tag == "" {
		return ""
	}

	// Ensure rootPath doesn't have trailing slash
	rootPath = strings.TrimSuffix(rootPath, "/")

	return fmt.Sprintf(openAPITemplate, rootPath, tag)
}

// GenerateOpenAPISpecs merges the game paths into the base document.
func GenerateOpenAPISpecs() (string, error) {
	var spec map[string]interface{}
	if err := yaml.Unmarshal([]byte(openAPISpecs), &spec); err != nil {
		return "", fmt.Errorf("failed to parse OpenAPI spec: %w", err)
	}

	existingTags, _ := spec["tags"].([]interface{})
	found := false
	for _, t := range existingTags {
		if m, ok := t.(map[string]interface{}); ok && m["name"] == Tag {
			found = true
			break
		}
	}
	if !found {
		spec["tags"] = append(existingTags, map[string]interface{}{"name": Tag})
	}

	var gameSpec map[string]interface{}
	if unmarshalErr := yaml.Unmarshal([]byte(GetOpenAPISpec(APIRoot, Tag)), &gameSpec); unmarshalErr == nil {
		paths, ok := spec["paths"].(map[string]interface{})
		if !ok {
			paths = map[string]interface{}{}
			spec["paths"] = paths
		}
		for k, v := range gameSpec {
			paths[k] = v
		}
	} else {
		slog.Warn("Failed to unmarshal game OpenAPI spec", "error", unmarshalErr)
	}

	bytes, bytesErr := yaml.Marshal(spec)
	if bytesErr != nil {
		return "", fmt.Errorf("failed to marshal OpenAPI spec: %w", bytesErr)
	}
	return string(bytes), nil
}
