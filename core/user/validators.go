package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/mateatletas/backend/core"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"

	usernameOrEmailTag  = "username_or_email"
	usernameOrEmailText = "one of username or email is required"

	// account creation password policy; stricter than the password change policy
	pwdPolicyTag  = "pwdpolicy"
	pwdPolicyText = fmt.Sprintf(
		"password must contain at least %d characters, 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		newPwdMinLen,
	)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"
	commonPasswords []string
)

// InitValidators registers the user validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(newUserStructValidation, NewUser{})
	core.RegisterCustomTranslation(validate, translator, usernameOrEmailTag, usernameOrEmailText)
	core.RegisterCustomTranslation(validate, translator, pwdPolicyTag, pwdPolicyText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

// LoadCommonPasswords loads the gzipped common passwords list (one per line) from the assets dir.
// A missing file is logged and skips the common password check.
func LoadCommonPasswords(logger core.Logger, workDir string) {
	pwdAssetPath := filepath.Join(workDir, "assets", "common-passwords.txt.gz")
	file, err := os.Open(pwdAssetPath)
	if err != nil {
		logger.Warn(fmt.Sprintf("loading common passwords: %v", err))
		return
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		logger.Warn(fmt.Sprintf("loading common passwords: %v", err))
		return
	}
	pwds := make([]string, 0, 1024)
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, strings.ToLower(pwd))
		}
	}
	if err = scanner.Err(); err != nil {
		logger.Warn(fmt.Sprintf("loading common passwords: %v", err))
		return
	}
	SetCommonPasswords(pwds)
}

// SetCommonPasswords replaces the common passwords list.
func SetCommonPasswords(pwds []string) {
	sorted := make([]string, 0, len(pwds))
	for _, pwd := range pwds {
		sorted = append(sorted, strings.ToLower(pwd))
	}
	sort.Strings(sorted)
	commonPasswords = sorted
}

// Custom Validators

// allRolesValidation checks that provided user roles are all in AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if _, known := rolePriorities[role]; !known {
			return false
		}
	}
	return true
}

// newUserStructValidation does NewUser's struct level validation.
func newUserStructValidation(sl validator.StructLevel) {
	nu, ok := sl.Current().Interface().(NewUser)
	if !ok {
		return
	}
	// one of Username or Email is required
	if len(nu.Username) == 0 && len(nu.Email) == 0 {
		sl.ReportError(nu.Username, "username", "Username", usernameOrEmailTag, "")
		sl.ReportError(nu.Email, "email", "Email", usernameOrEmailTag, "")
	}
	if nu.Password != "" {
		validateAccountPassword(nu.Password, nu.Name, nu.Username, nu.Email, sl)
	}
}

// validateAccountPassword applies the account creation policy to provided password:
// - password change rules (minLen: 8, 1 upper, 1 lower, 1 digit, 1 special)
// - no whitespace
// - no all numeric
// - no user attrs similarity
// - no common password
func validateAccountPassword(pwd, name, uname, email string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var digitCount int
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == len([]rune(pwd)) {
		reportErr(pwdNotAllNumTag)
		return
	}
	if !ValidateNewPassword(pwd).Valid {
		reportErr(pwdPolicyTag)
		return
	}

	if isSimilar(pwd, name) || isSimilar(pwd, uname) || isSimilar(pwd, email) {
		reportErr(pwdAttrSimTag)
		return
	}

	if IsCommonPassword(pwd) {
		reportErr(pwdNoCommonTag)
	}
}

func isSimilar(pwd, usrAttr string) bool {
	if usrAttr == "" {
		return false
	}
	lpwd := strings.ToLower(pwd)
	lattr := strings.ToLower(usrAttr)
	return difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(lattr, "")).QuickRatio() >= pwdMaxSim
}

// IsCommonPassword reports whether pwd is in the common passwords list (case-insensitive).
func IsCommonPassword(pwd string) bool {
	lpwd := strings.ToLower(pwd)
	idx := sort.SearchStrings(commonPasswords, lpwd)
	return idx < len(commonPasswords) && commonPasswords[idx] == lpwd
}
