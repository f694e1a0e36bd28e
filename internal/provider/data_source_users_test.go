package provider

import (
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

type userItem struct {
	Username    *string `tfsdk:"username"`
	DisplayName *string `tfsdk:"display_name"`
	FirstName   *string `tfsdk:"first_name"`
	LastName    *string `tfsdk:"last_name"`
	Email       *string `tfsdk:"email"`
	Department  *string `tfsdk:"department"`
	Title       *string `tfsdk:"title"`
	Phone       *string `tfsdk:"phone"`
	Mobile      *string `tfsdk:"mobile"`
	Office      *string `tfsdk:"office"`
	Company     *string `tfsdk:"company"`
	Manager     *string `tfsdk:"manager"`
	EmployeeID  *string `tfsdk:"employee_id"`
	CreatedDate *string `tfsdk:"created_date"`
	LastLogon   *string `tfsdk:"last_logon"`
	DN          *string `tfsdk:"dn"`
	ObjectGUID  *string `tfsdk:"object_guid"`
	ObjectSID   *string `tfsdk:"object_sid"`
}

func sampleUsers() []ldapclient.UserRecord {
	created := time.Date(2020, 1, 1, 9, 30, 0, 0, time.UTC)
	return []ldapclient.UserRecord{
		{
			Username:          "jsmith",
			DisplayName:       "John Smith",
			FirstName:         "John",
			LastName:          "Smith",
			Email:             "john.smith@example.com",
			Department:        "Engineering",
			CreatedDate:       &created,
			DistinguishedName: "CN=John Smith,OU=Staff,DC=example,DC=com",
			ObjectGUID:        "12345678-1234-1234-1234-123456789012",
		},
		{
			Username:          "asmithson",
			DisplayName:       "asmithson",
			DistinguishedName: "CN=asmithson,OU=Staff,DC=example,DC=com",
		},
	}
}

func TestUsersDataSource_Read(t *testing.T) {
	directory := &mockDirectory{}
	directory.On("SearchUsers", mock.Anything, "smith", 10).Return(sampleUsers()).Once()

	resp := readDataSource(t, NewUsersDataSource(), directory, map[string]tftypes.Value{
		"search_term": tftypes.NewValue(tftypes.String, " smith "),
		"max_results": tftypes.NewValue(tftypes.Number, 10),
	})
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)
	directory.AssertExpectations(t)

	var state UsersDataSourceModel
	require.False(t, resp.State.Get(t.Context(), &state).HasError())
	assert.Equal(t, int64(2), state.UserCount.ValueInt64())
	assert.Equal(t, "users-search-smith", state.ID.ValueString())

	var users []userItem
	require.False(t, state.Users.ElementsAs(t.Context(), &users, false).HasError())
	require.Len(t, users, 2)

	first := users[0]
	assert.Equal(t, "jsmith", *first.Username)
	assert.Equal(t, "John Smith", *first.DisplayName)
	assert.Equal(t, "john.smith@example.com", *first.Email)
	assert.Equal(t, "2020-01-01T09:30:00Z", *first.CreatedDate)
	assert.Nil(t, first.LastLogon)
	assert.Nil(t, first.Title)
	assert.Equal(t, "12345678-1234-1234-1234-123456789012", *first.ObjectGUID)

	second := users[1]
	assert.Equal(t, "asmithson", *second.Username)
	assert.Nil(t, second.Email)
}

func TestUsersDataSource_DefaultLimitAndEmptyResult(t *testing.T) {
	directory := &mockDirectory{}
	directory.On("SearchUsers", mock.Anything, "", 0).Return([]ldapclient.UserRecord{}).Once()

	resp := readDataSource(t, NewUsersDataSource(), directory, nil)
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)
	directory.AssertExpectations(t)

	var state UsersDataSourceModel
	require.False(t, resp.State.Get(t.Context(), &state).HasError())
	assert.Equal(t, int64(0), state.UserCount.ValueInt64())
	assert.False(t, state.Users.IsNull())
	assert.Empty(t, state.Users.Elements())
}

func TestUsersDataSource_UnconfiguredProvider(t *testing.T) {
	resp := readDataSource(t, NewUsersDataSource(), nil, nil)
	require.True(t, resp.Diagnostics.HasError())
	assert.Equal(t, "Unconfigured Directory Client", resp.Diagnostics.Errors()[0].Summary())
}

func TestUsersDataSource_WrongProviderData(t *testing.T) {
	ds := NewUsersDataSource().(*UsersDataSource)
	resp := &datasource.ConfigureResponse{}
	ds.Configure(t.Context(), datasource.ConfigureRequest{ProviderData: "not a directory"}, resp)
	require.True(t, resp.Diagnostics.HasError())
	assert.Nil(t, ds.directory)
	assert.Equal(t, "Unexpected Data Source Configure Type", resp.Diagnostics.Errors()[0].Summary())
}

func TestAccUsersDataSource(t *testing.T) {
	resource.Test(t, resource.TestCase{
		PreCheck:                 func() { testAccPreCheck(t) },
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: testAccUsersDataSourceConfig(GetTestConfig().Username),
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttrSet("data.adlookup_users.test", "id"),
					resource.TestCheckResourceAttrWith("data.adlookup_users.test", "user_count", func(value string) error {
						if value == "0" {
							return fmt.Errorf("Expected at least one user, got 0")
						}
						return nil
					}),
					resource.TestCheckResourceAttrSet("data.adlookup_users.test", "users.0.dn"),
				),
			},
		},
	})
}

func testAccUsersDataSourceConfig(term string) string {
	return TestProviderConfig() + fmt.Sprintf(`
data "adlookup_users" "test" {
  search_term = %q
  max_results = 5
}
`, term)
}
